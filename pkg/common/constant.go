package common

const (
	EnvKeyGoEnv string = "GO_ENV"

	EnvKeyRunIntegrationTests string = "RUN_INTEGRATION_TESTS"

	LoggerNameIOTCore       string = "iot_core"
	LoggerNameMQTTSession   string = "mqtt_session"
	LoggerNameRestfulServer string = "restful_server"
	LoggerNameGrpcServer    string = "grpc_server"
	LoggerNamePush          string = "push"
	LoggerNameActuator      string = "actuator"
	LoggerNameDB            string = "db"

	LoggerFieldCategory      string = "category"
	LoggerCategoryClassify   string = "classify"
	LoggerCategoryState      string = "state"
	LoggerCategoryAlert      string = "alert"
	LoggerCategoryDownlink   string = "downlink"
	LoggerCategoryCooldown   string = "cooldown"
	LoggerCategoryDedup      string = "dedup"
	LoggerCategoryConnection string = "connection"
)
