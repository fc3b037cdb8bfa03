//go:build ignore

// This program generates a sample lighting info tag for manual CLI runs.
// Run with: go run generate_lighting_info.go
package main

import (
	"log"
	"os"

	"github.com/Faultbox/h4lights/pkg/formats/formatstest"
)

func main() {
	spot := formatstest.PointLight("hallway_spot", [3]float32{12.5, -3, 1.2}, 4)
	spot.Kind = 1                         // spot
	spot.Color = [3]float32{1, 0.85, 0.6} // warm white
	spot.Forward = [3]float32{0, 0, -1}   // pointing down
	spot.Up = [3]float32{1, 0, 0}
	spot.Tail = 12

	sun := formatstest.PointLight("sky_sun", [3]float32{0, 0, 50}, 1)
	sun.Kind = 4 // sun
	sun.Forward = [3]float32{0.3, 0.2, -0.9}
	sun.Up = [3]float32{0, 1, 0}

	tag := formatstest.Tag{
		LeadingBlock:   make([]byte, 32),
		MetadataBlocks: [][]byte{make([]byte, 16), nil, make([]byte, 8)},
		Lights: []formatstest.Light{
			formatstest.PointLight("lamp_01", [3]float32{1, 2, 0.5}, 2),
			spot,
			sun,
		},
	}

	if err := os.WriteFile("sample.scenario_structure_lighting_info", tag.Bytes(), 0644); err != nil {
		log.Fatal(err)
	}
}
