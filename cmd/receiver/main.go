package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/playsdr/nrsync/internal/capture"
	"github.com/playsdr/nrsync/internal/config"
	"github.com/playsdr/nrsync/internal/regmap"
	"github.com/playsdr/nrsync/internal/rx"
	"github.com/playsdr/nrsync/internal/server"
	psync "github.com/playsdr/nrsync/internal/sync"
)

func main() {
	cfgPath := flag.String("config", "", "Configuration file (YAML)")
	input := flag.String("input", "", "Raw I/Q capture file (overrides config)")
	listDevices := flag.Bool("list-devices", false, "List audio input devices and exit")
	flag.Parse()

	if *listDevices {
		if err := capture.Init(); err != nil {
			log.Fatalf("Failed to initialize PortAudio: %v", err)
		}
		defer capture.Terminate()
		if err := capture.ListInputs(); err != nil {
			log.Fatalf("Failed to list devices: %v", err)
		}
		return
	}

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			log.Fatalf("Config error: %v", err)
		}
		cfg = loaded
	}
	if *input != "" {
		cfg.Input.Source = "file"
		cfg.Input.Path = *input
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	num, err := rx.NewNumerology(cfg.Receiver.NFFT)
	if err != nil {
		log.Fatalf("Numerology: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := rx.NewMetrics(registry)

	// Register surface: LLR queue at aperture 0, detection status at 1.
	status := regmap.NewStatus()
	llrFIFO := regmap.NewFIFO(cfg.Receiver.LLRQueue)
	bus := regmap.NewBus()
	bus.Attach(0, llrFIFO)
	bus.Attach(1, status)

	// Control writes arrive on HTTP goroutines; apply them on the
	// pipeline goroutine between blocks.
	var recv *rx.Receiver
	controlCh := make(chan func(), 8)
	status.OnControl = func(reg int, val uint32) {
		var apply func()
		switch reg {
		case regmap.StatRegShift:
			apply = func() { recv.SetDetectionShift(uint(val & 0x1f)) }
		case regmap.StatRegMode:
			mode := psync.CFOModeCoarseFine
			if val != 0 {
				mode = psync.CFOModeFineOnly
			}
			apply = func() { recv.SetCFOMode(mode) }
		default:
			return
		}
		select {
		case controlCh <- apply:
		default:
		}
	}

	handlers := server.NewHandlers(status, bus, llrFIFO)
	hub := handlers.Hub()

	mode := psync.CFOModeCoarseFine
	if cfg.Receiver.CFOMode != 0 {
		mode = psync.CFOModeFineOnly
	}

	recv, err = rx.NewReceiver(rx.Options{
		Numerology:    num,
		HalfCPAdvance: cfg.Receiver.HalfCPAdvance,
		InitialShift:  cfg.Receiver.InitialShift,
		TrackingShift: cfg.Receiver.TrackingShift,
		Consecutive:   cfg.Receiver.Consecutive,
		MultReuse:     cfg.Receiver.MultReuse,
		CFOMode:       mode,
		CFOTracking:   cfg.Receiver.CFOTracking,
		DemapHard:     cfg.Receiver.DemapHard,
		Watchdog:      uint64(float64(cfg.Receiver.WatchdogMS) / 1000 * num.SampleRate),
		Metrics:       metrics,
		OnLLRs: func(ssbIndex int, llrs []int8) {
			words := make([]uint32, len(llrs))
			for i, l := range llrs {
				words[i] = regmap.PackLLR(l, true)
			}
			llrFIFO.Push(words...)
			hub.BroadcastLLRs(ssbIndex, llrs)
		},
		OnEvent: func(ev rx.Event) {
			p := server.EventPayload{Timestamp: ev.Timestamp}
			switch ev.Kind {
			case rx.EventPeak:
				status.RecordDetection(ev.Nid2, ev.Power, recv.CFO())
				p.Kind, p.Nid2, p.Power = "peak", ev.Nid2, ev.Power
			case rx.EventCFO:
				p.Kind, p.CFOHz = "cfo", ev.CFO
			case rx.EventCell:
				status.RecordCell(ev.Cell.Nid())
				p.Kind, p.Nid = "cell", ev.Cell.Nid()
				log.Printf("Cell resolved: N_id=%d", ev.Cell.Nid())
			case rx.EventSSB:
				status.RecordIbar(ev.Ibar)
				p.Kind, p.Nid, p.Ibar = "ssb", ev.Cell.Nid(), ev.Ibar
			}
			hub.BroadcastEvent(p)
		},
	})
	if err != nil {
		log.Fatalf("Receiver: %v", err)
	}

	if cfg.Server.Enabled {
		srv := server.NewServer(cfg.Server.Addr, handlers, registry)
		go func() {
			if err := srv.Start(); err != nil {
				log.Fatalf("Server error: %v", err)
			}
		}()
	}

	src, err := openSource(cfg, num)
	if err != nil {
		log.Fatalf("Input: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	if err := run(ctx, recv, src, status, controlCh); err != nil && err != context.Canceled {
		log.Fatalf("Pipeline: %v", err)
	}
	log.Printf("Done: %d SSBs demapped, cell %v", recv.SSBCount(), cellString(recv))
}

func cellString(recv *rx.Receiver) string {
	cell, ok := recv.Cell()
	if !ok {
		return "unresolved"
	}
	return fmt.Sprintf("N_id=%d", cell.Nid())
}

// openSource builds the configured sample source, resampling when the
// capture rate sits above the pipeline rate.
func openSource(cfg *config.Config, num rx.Numerology) (capture.Source, error) {
	var src capture.Source
	switch cfg.Input.Source {
	case "file":
		fs, err := capture.OpenFile(cfg.Input.Path)
		if err != nil {
			return nil, err
		}
		src = fs
	case "audio":
		if err := capture.Init(); err != nil {
			return nil, fmt.Errorf("initialize PortAudio: %w", err)
		}
		rate := cfg.Input.Rate
		if rate == 0 {
			rate = num.SampleRate
		}
		as, err := capture.OpenAudio(cfg.Input.Device, rate)
		if err != nil {
			return nil, err
		}
		src = as
	}

	if cfg.Input.Rate != 0 && cfg.Input.Rate != num.SampleRate {
		ratio := cfg.Input.Rate / num.SampleRate
		if ratio != math.Trunc(ratio) || ratio < 2 {
			return nil, fmt.Errorf("capture rate %.0f is not an integer multiple of %.0f",
				cfg.Input.Rate, num.SampleRate)
		}
		return capture.NewResampled(src, int(ratio))
	}
	return src, nil
}

func run(ctx context.Context, recv *rx.Receiver, src capture.Source, status *regmap.Status, controlCh <-chan func()) error {
	resyncs := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case apply := <-controlCh:
			apply()
			continue
		default:
		}

		block, err := src.ReadBlock()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		for _, s := range block {
			if err := recv.Push(s, true); err != nil {
				return err
			}
		}

		status.RecordState(int(recv.State()))
		for resyncs < recv.Resyncs() {
			status.RecordResync()
			resyncs++
		}
	}
}
