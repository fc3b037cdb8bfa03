// Package formats provides parsers for Halo 4 tag formats.
package formats

// Note: scenario_structure_lighting_info is implemented in lighting_info.go,
// on top of the forward-only cursor in cursor.go.
