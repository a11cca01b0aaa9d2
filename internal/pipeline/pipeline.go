// Package pipeline is the boundary to the external text-to-image backends.
// A Factory binds a model identifier to a Pipeline; a Pipeline turns a prompt
// and generation parameters into exactly one image.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
)

type Device string

const (
	// DeviceAccelerated asks the backend to run on GPU hardware.
	DeviceAccelerated Device = "accelerated"
	// DeviceDefault leaves placement to the backend.
	DeviceDefault Device = "default"
)

func ParseDevice(s string) (Device, error) {
	switch d := Device(s); d {
	case DeviceAccelerated, DeviceDefault:
		return d, nil
	default:
		return "", fmt.Errorf("unknown device %q (must be accelerated or default)", s)
	}
}

type Precision string

const (
	PrecisionHalf Precision = "fp16"
	PrecisionFull Precision = "fp32"
)

func ParsePrecision(s string) (Precision, error) {
	switch p := Precision(s); p {
	case PrecisionHalf, PrecisionFull:
		return p, nil
	default:
		return "", fmt.Errorf("unknown precision %q (must be fp16 or fp32)", s)
	}
}

type LoadOptions struct {
	Device               Device
	Precision            Precision
	DisableSafetyChecker bool
}

func (o LoadOptions) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("device", string(o.Device)),
		slog.String("precision", string(o.Precision)),
		slog.Bool("disable_safety_checker", o.DisableSafetyChecker),
	)
}

type Params struct {
	Prompt   string  `json:"prompt"`
	Height   int     `json:"height"`
	Width    int     `json:"width"`
	Steps    int     `json:"steps"`
	Guidance float64 `json:"guidance"`
	Seed     int64   `json:"seed"`
}

type Pipeline interface {
	Generate(context.Context, Params) (image.Image, error)
	Close() error
}

type Factory interface {
	Load(ctx context.Context, model string, opts LoadOptions) (Pipeline, error)
}

// SafetySwitch is implemented by factories whose endpoint honours
// LoadOptions.DisableSafetyChecker.
type SafetySwitch interface {
	SwitchesSafetyChecker() bool
}

// SwitchesSafetyChecker reports whether f can turn the content safety
// checker off.
func SwitchesSafetyChecker(f Factory) bool {
	s, ok := f.(SafetySwitch)
	return ok && s.SwitchesSafetyChecker()
}
