// Package dashboard ties the STH client, the signal buffers and the charts
// together: a Session owns the buffers, a Poller fills them and a WebServer
// renders them.
package dashboard

import (
	"github.com/banshee-data/sensors.dashboard/internal/chart"
	"github.com/banshee-data/sensors.dashboard/internal/sth"
)

// Signal binds one STH attribute to the chart that displays it.
type Signal struct {
	Name       string     `json:"name"`
	EntityType string     `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	Attribute  string     `json:"attribute"`
	Chart      chart.Spec `json:"chart"`
}

// Query returns the STH query for the lastN most recent samples.
func (s Signal) Query(lastN int) sth.Query {
	return sth.Query{
		EntityType: s.EntityType,
		EntityID:   s.EntityID,
		Attribute:  s.Attribute,
		LastN:      lastN,
	}
}

// DefaultSignals is the fixed sensor topology, in display order.
func DefaultSignals() []Signal {
	return []Signal{
		{
			Name:       "luminosity",
			EntityType: "Lamp",
			EntityID:   "urn:ngsi-ld:Lamp:003",
			Attribute:  "luminosity",
			Chart: chart.Spec{
				Name:  "luminosity",
				Title: "Luminosity Over Time",
				Label: "Luminosity",
				YAxis: "Luminosity",
				Color: "red",
			},
		},
		{
			Name:       "humidity",
			EntityType: "DHTSensor",
			EntityID:   "urn:ngsi-ld:DHT:001",
			Attribute:  "humidity",
			Chart: chart.Spec{
				Name:  "humidity",
				Title: "Humidity Over Time",
				Label: "Humidity",
				YAxis: "Humidity",
				Color: "green",
			},
		},
		{
			Name:       "temperature",
			EntityType: "DHTSensor",
			EntityID:   "urn:ngsi-ld:DHT:001",
			Attribute:  "temperature",
			Chart: chart.Spec{
				Name:  "temperature",
				Title: "Temperature Over Time",
				Label: "Temperature",
				YAxis: "Temperature",
				Color: "orange",
			},
		},
		{
			Name:       "voltage",
			EntityType: "Potenciometer",
			EntityID:   "urn:ngsi-ld:POT:001",
			Attribute:  "voltage",
			Chart: chart.Spec{
				Name:  "voltage",
				Title: "Voltage Over Time",
				Label: "Voltage",
				YAxis: "Potentiometer",
				Color: "purple",
			},
		},
	}
}

func signalNames(signals []Signal) []string {
	names := make([]string, len(signals))
	for i, s := range signals {
		names[i] = s.Name
	}
	return names
}
