package ecs

// factory implements the factory pattern for ecs worlds.
type factory struct{}

// Factory is the global factory instance for creating Worlds.
var Factory factory

// NewWorld constructs a new, empty World using Config's current settings.
func (f factory) NewWorld() *World {
	return newWorld()
}
