package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/config"
)

var (
	maxDevices  = flag.Int("devices", 200, "number of simulated devices")
	rounds      = flag.Int("rounds", 5, "uplinks sent by every device")
	interval    = flag.Duration("interval", time.Second, "pause between rounds")
	firepercent = flag.Int("fire", 5, "percentage of smoke and button uplinks reporting fire")
)

var rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
var rndMu sync.Mutex

type device struct {
	devEUI      string
	name        string
	profileID   string
	profileName string
	fCnt        uint32
	payload     func() map[string]any
}

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("simulator reads the service configuration: ", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.MQTT.URL).
		SetClientID("fire-alarm-simulator-" + uuid.NewString()[:8]).
		SetUsername(cfg.MQTT.Username).
		SetPassword(cfg.MQTT.Password)
	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal("Failed to connect to broker: ", token.Error())
	}
	defer client.Disconnect(250)
	fmt.Printf("broker %s connected\n", cfg.MQTT.URL)

	devices := make([]*device, *maxDevices)
	for i := range *maxDevices {
		devices[i] = newDevice(i, cfg.Profiles)
	}
	fmt.Printf("generated %v devices\n", *maxDevices)

	var sent, failed atomic.Int64
	startTime := time.Now()
	for round := range *rounds {
		wg := sync.WaitGroup{}
		for _, d := range devices {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := publish(client, cfg.MQTT.ApplicationID, cfg.MQTT.QoS, d); err != nil {
					failed.Add(1)
					return
				}
				sent.Add(1)
			}()
		}
		wg.Wait()
		fmt.Printf("\rround %v/%v: sent=%v failed=%v", round+1, *rounds, sent.Load(), failed.Load())
		if round < *rounds-1 {
			time.Sleep(*interval)
		}
	}
	usedTime := time.Since(startTime)

	fmt.Printf(
		"\npublished %v uplinks: used time=%v seconds, throughput=%v uplink/second\n",
		sent.Load(), usedTime.Seconds(), float64(sent.Load())/usedTime.Seconds(),
	)
}

func publish(client paho.Client, applicationID string, qos byte, d *device) error {
	d.fCnt++
	body, err := json.Marshal(map[string]any{
		"applicationID":     applicationID,
		"deviceProfileID":   d.profileID,
		"deviceProfileName": d.profileName,
		"deviceName":        d.name,
		"devEUI":            d.devEUI,
		"fCnt":              d.fCnt,
		"object":            d.payload(),
	})
	if err != nil {
		return err
	}

	topic := fmt.Sprintf("application/%s/device/%s/event/up", applicationID, d.devEUI)
	token := client.Publish(topic, qos, false, body)
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}

func newDevice(i int, profiles config.ProfileConfig) *device {
	d := &device{devEUI: fmt.Sprintf("%016x", rndInt63())}

	switch i % 4 {
	case 0:
		d.name, d.profileID, d.profileName = fmt.Sprintf("Smoke%d_sim", i), profiles.SmokeID, "Smoke"
		d.payload = func() map[string]any {
			return map[string]any{
				"smoke_warning": boolInt(onFire()),
				"battery":       rndFloat64(0, 100, 0),
				"temperature":   rndFloat64(15, 60, 1),
			}
		}
	case 1:
		d.name, d.profileID, d.profileName = fmt.Sprintf("Smoke%d_sim", i), profiles.SmokeID, "Smoke"
		d.payload = func() map[string]any {
			alarm := "Normal"
			if onFire() {
				alarm = "Danger"
			}
			return map[string]any{"data": map[string]any{
				"smoke_alarm":   alarm,
				"heat_alarm":    "Normal",
				"batteryStatus": "Normal",
				"temperature":   rndFloat64(15, 60, 1),
			}}
		}
	case 2:
		d.name, d.profileID, d.profileName = fmt.Sprintf("Climate%d_sim", i), profiles.TempHumidityID, "TempHumidity"
		d.payload = func() map[string]any {
			return map[string]any{
				"battery":     rndFloat64(0, 100, 0),
				"temperature": rndFloat64(15, 40, 1),
				"humidity":    rndFloat64(20, 90, 1),
			}
		}
	default:
		d.name, d.profileID, d.profileName = fmt.Sprintf("Button%d_sim", i), profiles.ButtonID, "Button"
		d.payload = func() map[string]any {
			return map[string]any{"value": boolInt(onFire())}
		}
	}
	return d
}

func onFire() bool {
	rndMu.Lock()
	defer rndMu.Unlock()
	return rnd.Intn(100) < *firepercent
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func rndInt63() int64 {
	rndMu.Lock()
	defer rndMu.Unlock()
	return rnd.Int63()
}

func rndFloat64(min, max float64, decimal int) float64 {
	rndMu.Lock()
	val := min + rnd.Float64()*(max-min)
	rndMu.Unlock()
	multiplier := math.Pow10(decimal)
	return math.Round(val*multiplier) / multiplier
}
