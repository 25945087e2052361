// Package mapdata reads road network files and builds roadnet.CityMap values
// from them.
//
// A network file is YAML:
//
//	name: midtown
//	default_speed: 11.1        # m/s, used by links without a speed
//	vertices:
//	  - {id: 1, lat: 40.7580, lon: -73.9855}
//	  - {id: 2, lat: 40.7590, lon: -73.9845}
//	links:
//	  - {from: 1, to: 2, speed: 8.3, length: 130}
//	  - {from: 2, to: 1, two_way: false}
//
// Link length defaults to the great-circle distance between its vertices.
// A two_way link also adds the reverse link with the same speed and length.
package mapdata

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fleet-sim/fleet-sim/sim/roadnet"
)

// Vertex is a point of the network.
type Vertex struct {
	ID  int64   `yaml:"id"`
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
}

// Link is a directed straight segment between two vertices.
type Link struct {
	From   int64   `yaml:"from"`
	To     int64   `yaml:"to"`
	Speed  float64 `yaml:"speed"`  // m/s; 0 = network default
	Length float64 `yaml:"length"` // metres; 0 = great-circle distance
	TwoWay bool    `yaml:"two_way"`
}

// Network is the content of a network file.
type Network struct {
	Name         string   `yaml:"name"`
	DefaultSpeed float64  `yaml:"default_speed"`
	Vertices     []Vertex `yaml:"vertices"`
	Links        []Link   `yaml:"links"`
}

// LoadNetwork reads and parses a YAML network file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadNetwork(path string) (*Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading network file: %w", err)
	}
	return ParseNetwork(data)
}

// ParseNetwork parses network YAML.
func ParseNetwork(data []byte) (*Network, error) {
	var n Network
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&n); err != nil {
		return nil, fmt.Errorf("parsing network: %w", err)
	}
	return &n, nil
}

// Validate checks the network before it is built.
func (n *Network) Validate() error {
	if n.DefaultSpeed < 0 {
		return fmt.Errorf("default_speed must be >= 0, got %f", n.DefaultSpeed)
	}
	if len(n.Vertices) == 0 {
		return fmt.Errorf("network has no vertices")
	}
	if len(n.Links) == 0 {
		return fmt.Errorf("network has no links")
	}
	for i, l := range n.Links {
		if l.Speed < 0 || l.Length < 0 {
			return fmt.Errorf("links[%d]: speed and length must be >= 0", i)
		}
		if l.Speed == 0 && n.DefaultSpeed == 0 {
			return fmt.Errorf("links[%d]: no speed and no default_speed", i)
		}
	}
	return nil
}

// Build validates the network, builds its map and the shortest-path table
// using workers goroutines.
func (n *Network) Build(workers int) (*roadnet.CityMap, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	b := roadnet.NewBuilder()
	for i, v := range n.Vertices {
		if err := b.AddVertex(v.ID, v.Lat, v.Lon); err != nil {
			return nil, fmt.Errorf("vertices[%d]: %w", i, err)
		}
	}
	for i, l := range n.Links {
		speed := l.Speed
		if speed == 0 {
			speed = n.DefaultSpeed
		}
		if err := b.AddLink(l.From, l.To, speed, l.Length); err != nil {
			return nil, fmt.Errorf("links[%d]: %w", i, err)
		}
		if l.TwoWay {
			if err := b.AddLink(l.To, l.From, speed, l.Length); err != nil {
				return nil, fmt.Errorf("links[%d] reverse: %w", i, err)
			}
		}
	}
	m, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("building network %q: %w", n.Name, err)
	}
	m.BuildPathTable(workers)
	return m, nil
}

// Load reads the network file at path and builds its map.
func Load(path string, workers int) (*roadnet.CityMap, error) {
	n, err := LoadNetwork(path)
	if err != nil {
		return nil, err
	}
	return n.Build(workers)
}
