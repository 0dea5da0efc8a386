// Command reblock-wav runs a WAV file through the re-blocking processor as
// an audio host would, with fixed or jittered callback sizes, and writes the
// result or plays it through the audio device.
//
// Usage:
//
//	reblock-wav -block 100 input.wav output.wav
//	reblock-wav -block 1024 -jitter 1:1024 -lowpass 4000 input.wav output.wav
//	reblock-wav -config host.yaml -mode dual -ir cab.wav guitar.wav out.wav
//	reblock-wav -play -gain -6 input.wav
//
// Flags override values from the -config profile.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	reblock "github.com/tphakala/go-audio-reblock"
	"github.com/tphakala/go-audio-reblock/internal/config"
	"github.com/tphakala/go-audio-reblock/internal/host"
	"github.com/tphakala/go-audio-reblock/internal/meter"
	"github.com/tphakala/go-audio-reblock/internal/playback"
	"github.com/tphakala/go-audio-reblock/internal/simdops"
)

const (
	minRequiredArgs = 1
	msPerSecond     = 1000
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

// options is the parsed command line.
type options struct {
	cfg        *config.Config
	input      string
	output     string
	play       bool
	compensate bool
	verbose    bool
	cpuprofile string
}

func run(args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}

	if opts.cpuprofile != "" {
		f, err := os.Create(opts.cpuprofile)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = f.Close()
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return process(ctx, opts)
}

func parseArgs(args []string) (*options, error) {
	fs := flag.NewFlagSet("reblock-wav", flag.ContinueOnError)

	configPath := fs.String("config", "", "YAML host profile")
	block := fs.Int("block", config.DefaultBlockSize, "Host block size in samples")
	jitter := fs.String("jitter", "", "Vary callback sizes uniformly in lo:hi (hi <= block)")
	seed := fs.Uint64("seed", config.DefaultJitterSeed, "Jitter random seed")
	rate := fs.Int("rate", 0, "Sample rate in Hz reported to the processor (0 = input file rate)")
	gain := fs.Float64("gain", 0, "Output gain in dB")
	ir := fs.String("ir", "", "Impulse response WAV to convolve with")
	lowpass := fs.Float64("lowpass", 0, "Lowpass cutoff in Hz, used when -ir is not given")
	mode := fs.String("mode", config.DefaultMode, "Input routing: mono, dual or stereo")
	mute := fs.String("mute", "", "Mute rack mono sections: a, b or a,b")
	maxDelay := fs.Int("max-delay", 0, "Cap on the compensating delay in samples (0 = ring headroom)")
	strict := fs.Bool("strict", false, "Panic on re-blocking invariant violations")
	refresh := fs.Int("refresh", config.DefaultRefreshHz, "Meter refresh rate in Hz (0 disables the meter)")

	opts := &options{}
	fs.BoolVar(&opts.play, "play", false, "Play through the audio device instead of writing a file")
	fs.BoolVar(&opts.compensate, "compensate", false, "Remove the processor latency from the output file")
	fs.BoolVar(&opts.verbose, "v", false, "Verbose output")
	fs.StringVar(&opts.cpuprofile, "cpuprofile", "", "Write CPU profile to file")

	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage: reblock-wav [options] input.wav [output.wav]\n\n")
		fmt.Fprintf(out, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(out, "\nExamples:\n")
		fmt.Fprintf(out, "  reblock-wav -block 100 in.wav out.wav              # 64-sample quanta, 63 samples latency\n")
		fmt.Fprintf(out, "  reblock-wav -block 1024 -jitter 1:1024 in.wav out.wav # jittery host\n")
		fmt.Fprintf(out, "  reblock-wav -play -mode mono -lowpass 3000 in.wav     # listen\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() < minRequiredArgs {
		fs.Usage()
		return nil, errors.New("missing input file")
	}
	opts.input = fs.Arg(0)
	opts.output = fs.Arg(1)
	if opts.output == "" && !opts.play {
		fs.Usage()
		return nil, errors.New("missing output file (or use -play)")
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return nil, err
		}
	}

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "block":
			cfg.Host.BlockSize = *block
		case "jitter":
			lo, hi, err := parseJitter(*jitter)
			if err != nil {
				flagErr = err
				return
			}
			cfg.Host.Jitter.Min, cfg.Host.Jitter.Max = lo, hi
		case "seed":
			cfg.Host.Jitter.Seed = *seed
		case "rate":
			cfg.Host.SampleRate = *rate
		case "gain":
			cfg.Engine.GainDB = *gain
		case "ir":
			cfg.Engine.Impulse = *ir
		case "lowpass":
			cfg.Engine.LowpassHz = *lowpass
		case "mode":
			cfg.Engine.Mode = *mode
		case "mute":
			a, b, err := parseMute(*mute)
			if err != nil {
				flagErr = err
				return
			}
			cfg.Engine.MuteA, cfg.Engine.MuteB = a, b
		case "max-delay":
			cfg.Processor.MaxDelay = *maxDelay
		case "strict":
			cfg.Processor.Strict = *strict
		case "refresh":
			cfg.Meter.RefreshHz = *refresh
		}
	})
	if flagErr != nil {
		return nil, flagErr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts.cfg = cfg
	return opts, nil
}

// parseJitter parses "lo:hi". An empty string disables jitter.
func parseJitter(s string) (lo, hi int, err error) {
	if s == "" {
		return 0, 0, nil
	}
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid -jitter %q: want lo:hi", s)
	}
	if lo, err = strconv.Atoi(strings.TrimSpace(a)); err != nil {
		return 0, 0, fmt.Errorf("invalid -jitter %q: %w", s, err)
	}
	if hi, err = strconv.Atoi(strings.TrimSpace(b)); err != nil {
		return 0, 0, fmt.Errorf("invalid -jitter %q: %w", s, err)
	}
	return lo, hi, nil
}

// parseMute parses a comma-separated list of rack names.
func parseMute(s string) (a, b bool, err error) {
	for part := range strings.SplitSeq(s, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "":
		case "a":
			a = true
		case "b":
			b = true
		default:
			return false, false, fmt.Errorf("invalid -mute %q: want a, b or a,b", s)
		}
	}
	return a, b, nil
}

func process(ctx context.Context, opts *options) error {
	cfg := opts.cfg

	in, err := readWAV(opts.input)
	if err != nil {
		return err
	}
	sampleRate := cfg.Host.SampleRate
	if sampleRate == 0 {
		sampleRate = in.sampleRate
	}

	if opts.verbose {
		log.Printf("Input: %s (%d Hz, %d channels, %d-bit, %d frames)",
			opts.input, in.sampleRate, in.channels, in.bitDepth, in.frames())
		log.Printf("SIMD: %s", simdops.Info())
	}

	router, err := buildRouter(cfg.Engine, float64(sampleRate))
	if err != nil {
		return err
	}

	pcfg := &reblock.Config{MaxDelay: cfg.Processor.MaxDelay, Strict: cfg.Processor.Strict}
	if opts.verbose {
		pcfg.Logger = log.Default()
	}
	proc, err := reblock.New(router, pcfg)
	if err != nil {
		return err
	}
	if err := proc.Prepare(float64(sampleRate), cfg.Host.BlockSize); err != nil {
		return err
	}
	defer proc.Release()

	start := time.Now()
	var out *audioData
	if opts.play {
		err = playLive(ctx, proc, cfg, in, sampleRate)
	} else {
		out, err = renderOffline(ctx, proc, cfg, in, opts.compensate)
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if out != nil {
		if err := writeWAV(opts.output, out); err != nil {
			return err
		}
	}

	printSummary(opts, proc, in, sampleRate, elapsed)
	return nil
}

// renderOffline runs the whole file through a simulated host. The input is
// padded with enough silence to drain any delay grown under jitter, and the
// output keeps every input sample. compensate trims the structural latency
// from the head; delay grown under jitter is inserted mid-stream and stays.
func renderOffline(ctx context.Context, proc *reblock.Processor, cfg *config.Config, in *audioData, compensate bool) (*audioData, error) {
	frames := in.frames()
	total := frames + proc.FlushSamples()

	inL := make([]float32, total)
	inR := make([]float32, total)
	copy(inL, in.left)
	copy(inR, in.right)
	outL := make([]float32, total)
	outR := make([]float32, total)

	var jitter *host.Jitter
	if j := cfg.Host.Jitter; j.Enabled() {
		var err error
		if jitter, err = host.Uniform(j.Min, j.Max, j.Seed); err != nil {
			return nil, err
		}
	}
	driver, err := host.NewDriver(proc, cfg.Host.BlockSize, jitter)
	if err != nil {
		return nil, err
	}

	err = withMeter(ctx, proc, cfg.Meter.RefreshHz, func(ctx context.Context) error {
		_, err := driver.Run(ctx, inL, inR, outL, outR)
		return err
	})
	if err != nil {
		return nil, err
	}

	start, end := 0, frames+proc.Stats().TotalDelay
	if compensate {
		start = proc.LatencySamples()
	}
	out := *in
	out.left = outL[start:end]
	out.right = outR[start:end]
	return &out, nil
}

// playLive plays the file through the audio device, which calls the
// processor with its own buffer sizes.
func playLive(ctx context.Context, proc *reblock.Processor, cfg *config.Config, in *audioData, sampleRate int) error {
	player, err := playback.NewPlayer(sampleRate)
	if err != nil {
		return err
	}
	stream := playback.NewStream(&playback.SliceSource{Left: in.left, Right: in.right}, proc, proc.FlushSamples())

	return withMeter(ctx, proc, cfg.Meter.RefreshHz, func(ctx context.Context) error {
		return player.Play(ctx, stream)
	})
}

// withMeter runs work while a meter line refreshes on the terminal.
func withMeter(ctx context.Context, src meter.LevelSource, refreshHz int, work func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	monCtx, stopMonitor := context.WithCancel(gctx)
	defer stopMonitor()

	if line := newMeterLine(os.Stderr, refreshHz); line != nil {
		mon := meter.NewMonitor(src, refreshHz, line.draw)
		g.Go(func() error {
			defer line.finish()
			if err := mon.Run(monCtx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		defer stopMonitor()
		return work(gctx)
	})
	return g.Wait()
}

func printSummary(opts *options, proc *reblock.Processor, in *audioData, sampleRate int, elapsed time.Duration) {
	st := proc.Stats()
	plan := proc.Plan()
	latencyMs := float64(plan.Latency()) * msPerSecond / float64(sampleRate)

	if opts.play {
		fmt.Printf("Played %s\n", filepath.Base(opts.input))
	} else {
		fmt.Printf("Processed %s -> %s\n", filepath.Base(opts.input), filepath.Base(opts.output))
	}
	fmt.Printf("  %s\n", plan)
	fmt.Printf("  Latency: %d samples (%.2f ms), total delay %d samples\n", plan.Latency(), latencyMs, st.TotalDelay)
	fmt.Printf("  %d blocks, %d quanta, %d delay growths\n", st.Blocks, st.Quanta, st.DelayGrowths)
	if v := st.Violations(); v > 0 {
		fmt.Printf("  WARNING: %d invariant violations (%d overflows, %d underflows)\n", v, st.Overflows, st.Underflows)
	}
	fmt.Printf("  Duration: %.2fs, Speed: %.1fx realtime\n",
		elapsed.Seconds(),
		float64(in.frames())/float64(sampleRate)/elapsed.Seconds())
}
