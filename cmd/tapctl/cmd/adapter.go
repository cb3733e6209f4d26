package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/OpenTraceLab/tapengine/internal/config"
	"github.com/OpenTraceLab/tapengine/pkg/jtag"
)

// session is an engine bound to an open adapter.
type session struct {
	eng      *jtag.Engine
	registry *prometheus.Registry
}

// openSession connects the configured adapter and wraps it in an engine.
func openSession() (*session, error) {
	adapter, err := createAdapter(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create adapter: %w", err)
	}

	if err := adapter.SetSpeed(cfg.Adapter.SpeedHz); err != nil && !errors.Is(err, jtag.ErrNotImplemented) {
		adapter.Close()
		return nil, fmt.Errorf("failed to set speed: %w", err)
	}

	info, err := adapter.Info()
	if err != nil && !errors.Is(err, jtag.ErrNotImplemented) {
		adapter.Close()
		return nil, fmt.Errorf("failed to get adapter info: %w", err)
	}
	logger.Debug("adapter ready",
		"name", info.Name, "vendor", info.Vendor, "model", info.Model,
		"firmware", info.Firmware, "speed_hz", cfg.Adapter.SpeedHz)

	reg := prometheus.NewRegistry()
	eng := jtag.NewEngine(jtag.NewAdapterController(adapter),
		jtag.WithLogger(logger),
		jtag.WithMetrics(jtag.NewMetrics(reg)),
		jtag.WithTRST(cfg.UseTRST),
	)
	return &session{eng: eng, registry: reg}, nil
}

func (s *session) Close() error {
	return s.eng.Controller().Quit()
}

// printStats writes every counter the engine recorded.
func (s *session) printStats(w io.Writer) error {
	families, err := s.registry.Gather()
	if err != nil {
		return err
	}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			var labels []string
			for _, label := range metric.GetLabel() {
				labels = append(labels, label.GetName()+"="+label.GetValue())
			}
			name := family.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			fmt.Fprintf(w, "%-50s %g\n", name, metric.GetCounter().GetValue())
		}
	}
	return nil
}

func createAdapter(c *config.Config) (jtag.Adapter, error) {
	switch c.Adapter.Kind {
	case config.KindSimulator:
		sim := jtag.NewSimAdapter(jtag.AdapterInfo{
			Name:         "JTAG Simulator",
			Vendor:       "OpenTraceLab",
			Model:        "SimTarget",
			MinFrequency: 100,
			MaxFrequency: 10_000_000,
			SupportsTRST: true,
		})
		target := jtag.NewSimTarget(c.Simulator.IRLength, c.Simulator.IDCode)
		target.Attach(sim)
		logger.Debug("using simulator", "ir_length", c.Simulator.IRLength,
			"idcode", fmt.Sprintf("0x%08X", c.Simulator.IDCode))
		return sim, nil
	case config.KindCMSISDAP:
		return jtag.NewCMSISDAPAdapter(c.Adapter.VendorID, c.Adapter.ProductID)
	default:
		return nil, fmt.Errorf("unsupported adapter type: %s", c.Adapter.Kind)
	}
}
