package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/robotalks/tagrelay/pkg/tag"
	"github.com/robotalks/tagrelay/pkg/transport"
)

var (
	topicColor = color.New(color.FgCyan)
	idColor    = color.New(color.FgGreen, color.Bold)
	errColor   = color.New(color.FgRed)
)

var (
	mqttURL    = "mqtt://localhost:1883/tagrelay/"
	outputJSON bool
)

func init() {
	if val := os.Getenv("TAGRELAY_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print events in JSON.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	opts, prefix, err := transport.BrokerOptionsFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	b := transport.NewBroker(opts, prefix)
	b.Subscribe("#", func(topic string, payload []byte) {
		ev, err := tag.UnmarshalEvent(payload)
		if err != nil {
			log.Printf("%s: %s", topicColor.Sprint(topic), errColor.Sprintf("bad event: %v", err))
			return
		}
		if outputJSON {
			out, err := json.Marshal(ev)
			if err != nil {
				log.Printf("%s: %v", topic, err)
				return
			}
			log.Printf("%s: %s", topic, out)
			return
		}
		log.Printf("%s: %s from %s at %s (event %s)", topicColor.Sprint(topic), idColor.Sprint(ev.Identity), ev.DeviceID,
			ev.ReadAt().Format("15:04:05.000"), ev.ID)
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := b.Connect(ctx); err != nil {
		log.Fatalln(err)
	}
	<-ctx.Done()
	b.Close()
}
