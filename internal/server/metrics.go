package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"parking-facility/internal/parking"
)

type availabilitySource interface {
	Availability() parking.Availability
}

// AvailabilityCollector recounts the layout on every scrape.
type AvailabilityCollector struct {
	source    availabilitySource
	capacity  *prometheus.Desc
	occupied  *prometheus.Desc
	available *prometheus.Desc
}

func NewAvailabilityCollector(source availabilitySource) *AvailabilityCollector {
	return &AvailabilityCollector{
		source: source,
		capacity: prometheus.NewDesc("parking_capacity_spots",
			"Spots counted toward capacity.", nil, nil),
		occupied: prometheus.NewDesc("parking_occupied_spots",
			"Spots currently occupied.", nil, nil),
		available: prometheus.NewDesc("parking_available_spots",
			"Unoccupied spots by category.", []string{"category"}, nil),
	}
}

func (c *AvailabilityCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.capacity
	ch <- c.occupied
	ch <- c.available
}

func (c *AvailabilityCollector) Collect(ch chan<- prometheus.Metric) {
	a := c.source.Availability()
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(a.TotalCapacity))
	ch <- prometheus.MustNewConstMetric(c.occupied, prometheus.GaugeValue, float64(a.Occupied))
	for _, cat := range parking.SpotCategories() {
		ch <- prometheus.MustNewConstMetric(c.available, prometheus.GaugeValue,
			float64(a.AvailableByCategory[cat]), cat.String())
	}
}
