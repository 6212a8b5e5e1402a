// Package simulator emulates a fleet of sensor boards. Each device posts the
// firmware payload {"temperature", "humidity", "brightness"} to an iotdash
// server at a fixed interval, with values following a bounded random walk.
package simulator
