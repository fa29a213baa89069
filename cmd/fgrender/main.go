// Command fgrender executes a framegraph described in JSON and writes
// the resulting frame as PNG.
//
// Usage:
//
//	fgrender -graph pipeline.json -time 1.5 -output out.png
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	// Vulkan backend registers itself with the hal registry.
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/media"
)

func main() {
	var (
		graphPath = flag.String("graph", "", "graph JSON file (required)")
		output    = flag.String("output", "out.png", "output PNG file")
		timeCode  = flag.Float64("time", 0, "timeline position in seconds")
		backend   = flag.String("backend", "vulkan", "GPU backend: vulkan or noop")
		hold      = flag.Bool("hold-video", false, "reuse the last good video frame on temporary fetch failures")
		verbose   = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	if *graphPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *verbose {
		framegraph.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	if err := run(*graphPath, *output, framegraph.TimeCode(*timeCode), *backend, *hold); err != nil {
		log.Fatalf("fgrender: %v", err)
	}
}

func run(graphPath, output string, t framegraph.TimeCode, backendName string, hold bool) error {
	g, err := framegraph.LoadGraph(graphPath)
	if err != nil {
		return err
	}

	device, queue, cleanup, err := openDevice(backendName)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := framegraph.DefaultOptions()
	opts.HoldLastVideoFrame = hold
	exec, err := framegraph.New(device, queue, framegraph.StockLibrary(), opts)
	if err != nil {
		return err
	}
	defer exec.Close()

	res, err := exec.ExecuteAt(context.Background(), g, t)
	if err != nil {
		return err
	}
	log.Printf("rendered %d nodes (%d cached) at t=%.3f",
		res.Stats.HandlerInvocations+res.Stats.CacheHits, res.Stats.CacheHits, float64(t))

	pix, err := exec.ReadFrame(res.Output)
	if err != nil {
		return err
	}
	buf := &media.Buffer{
		Width:  int(res.Output.Width()),
		Height: int(res.Output.Height()),
		Pix:    pix,
	}
	if err := buf.SavePNG(output); err != nil {
		return err
	}
	log.Printf("wrote %s (%dx%d)", output, buf.Width, buf.Height)
	return nil
}

// openDevice opens a device on the requested backend and returns it
// with a cleanup function.
func openDevice(name string) (hal.Device, hal.Queue, func(), error) {
	switch name {
	case "vulkan":
		return openVulkan()
	case "noop":
		return openNoop()
	default:
		return nil, nil, nil, fmt.Errorf("unknown backend %q", name)
	}
}

func openVulkan() (hal.Device, hal.Queue, func(), error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, nil, nil, fmt.Errorf("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, nil, nil, fmt.Errorf("no GPU adapters found")
	}

	// Prefer real GPUs over software rasterizers.
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, nil, nil, fmt.Errorf("open device %q: %w", selected.Info.Name, err)
	}
	log.Printf("using adapter %s", selected.Info.Name)

	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup, nil
}

func openNoop() (hal.Device, hal.Queue, func(), error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create noop instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, nil, nil, fmt.Errorf("open noop device: %w", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup, nil
}
