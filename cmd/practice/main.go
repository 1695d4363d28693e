// Command practice plays a score through the speakers while listening to the
// player's instrument and judging whether the played pitches match the
// expected notes at each instant.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/metalblueberry/plectrum/pkg/chroma"
	"github.com/metalblueberry/plectrum/pkg/guitar"
	"github.com/metalblueberry/plectrum/pkg/karplus"
	"github.com/metalblueberry/plectrum/pkg/listen"
	"github.com/metalblueberry/plectrum/pkg/match"
	"github.com/metalblueberry/plectrum/pkg/score"
	"github.com/metalblueberry/plectrum/pkg/scrub"
	"github.com/spf13/cobra"
)

var (
	flagTempo     int
	flagGuitar    string
	flagMetric    string
	flagThreshold float64
	flagSilence   float64
	flagDevice    string
	flagMonitor   bool
)

var rootCmd = &cobra.Command{
	Use:   "practice",
	Short: "Play a score and grade your playing against it",
	Long: `practice synthesizes the score as plucked strings on the default output
device, captures the instrument on the input device and reports per-note
match results.`,
	RunE: run,
}

func init() {
	rootCmd.Flags().IntVar(&flagTempo, "tempo", 0, "tempo override in BPM (0 uses the score tempo)")
	rootCmd.Flags().StringVar(&flagGuitar, "guitar", "acoustic", "timbre preset: acoustic, electric, classical, bass, twelve")
	rootCmd.Flags().StringVar(&flagMetric, "metric", "peakset", "similarity metric: peakset, cosine, pearson, euclidean, dtw")
	rootCmd.Flags().Float64Var(&flagThreshold, "threshold", 0.7, "boolean match threshold for continuous metrics")
	rootCmd.Flags().Float64Var(&flagSilence, "silence", listen.DefaultSilenceThreshold, "silence gate energy threshold")
	rootCmd.Flags().StringVar(&flagDevice, "device", "", "substring of the audio device name to use")
	rootCmd.Flags().BoolVar(&flagMonitor, "monitor", false, "open the waveform/chroma monitor window")
}

func main() {
	cobra.CheckErr(rootCmd.Execute())
}

func run(cmd *cobra.Command, args []string) error {
	ctx, done := context.WithCancel(context.Background())
	defer done()
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		log.Println("interrupted")
		done()
		<-time.After(5 * time.Second)
		log.Println("shutdown timeout")
		os.Exit(1)
	}()

	metric, err := match.ParseMetric(flagMetric)
	if err != nil {
		return err
	}

	store := guitar.NewStore(guitar.Preset(flagGuitar))
	comparator := match.NewComparator(metric, flagThreshold)

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize audio: %w", err)
	}
	defer portaudio.Terminate()

	e, err := newEngine(flagDevice, store)
	if err != nil {
		return err
	}
	defer e.Close()

	listener := listen.New(e.sampleRate, chroma.DefaultOptions(), comparator)
	listener.Thresholds().SetSilence(flagSilence)
	e.listener = listener
	go listener.Run(ctx)

	s := score.Demo()
	scrubber := scrub.New(s, flagTempo)
	go dispatchNotes(ctx, scrubber, listener, e)
	go reportResults(ctx, listener)

	if err := e.Start(); err != nil {
		return fmt.Errorf("failed to start audio stream: %w", err)
	}
	defer e.Stop()

	go func() {
		scrubber.Run(ctx)
		// Position is discarded on stop; silence the pool and disarm the
		// matcher together.
		listener.Expected().Clear()
		e.pool.Clear()
		log.Println("playback finished")
		done()
	}()

	log.Printf("playing %d measures at %.0f Hz with %s timbre, %s metric",
		len(s.Measures), e.sampleRate, store.Get().Name, metric)

	if flagMonitor {
		ebiten.SetWindowSize(screenWidth, screenHeight)
		ebiten.SetWindowTitle("plectrum monitor")
		if err := ebiten.RunGame(newMonitor(ctx, listener)); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}

	<-ctx.Done()
	return nil
}

// dispatchNotes is the scheduler glue: on every division boundary it swaps
// the expected-note state, spawns synthesis voices and logs the position.
func dispatchNotes(ctx context.Context, scrubber *scrub.Scrubber, listener *listen.Listener, e *engine) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-scrubber.Events():
			config := e.store.Get()
			expected := chroma.Expected(ev.Notes, config, listener.Options())
			listener.Expected().Swap(ev.Notes, expected)

			spd := scrubber.SecondsPerDivision()
			for _, n := range ev.Notes {
				if !n.Fretted() {
					continue
				}
				frequency := score.Frequency(n, config.ScaleLength, config.CapoFret)
				duration := spd * float64(n.Duration)
				e.pool.Add(karplus.NewVoice(frequency, duration, e.sampleRate, config))
			}
			if len(ev.Notes) > 0 {
				log.Printf("measure %d division %d: %d note(s)", ev.Measure, ev.Division, len(ev.Notes))
			}
		}
	}
}

func reportResults(ctx context.Context, listener *listen.Listener) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-listener.Results():
			if r.Matched {
				log.Printf("match (%s): similarity %.3f", r.Metric, r.Similarity)
			} else {
				log.Printf("miss (%s): similarity %.3f", r.Metric, r.Similarity)
			}
		}
	}
}

// engine owns the duplex audio stream: the callback mixes the voice pool
// into the output buffer and hands the captured input to the listener.
type engine struct {
	*portaudio.Stream
	pool       *karplus.Pool
	store      *guitar.Store
	listener   *listen.Listener
	sampleRate float64
}

func newEngine(deviceSubstring string, store *guitar.Store) (*engine, error) {
	h, err := portaudio.DefaultHostApi()
	if err != nil {
		return nil, fmt.Errorf("no audio host api available: %w", err)
	}

	input := h.DefaultInputDevice
	output := h.DefaultOutputDevice
	if deviceSubstring != "" {
		for _, device := range h.Devices {
			if strings.Contains(device.Name, deviceSubstring) {
				input = device
				output = device
				break
			}
		}
	}
	if input == nil {
		return nil, fmt.Errorf("no input device available")
	}
	if output == nil {
		return nil, fmt.Errorf("no output device available")
	}

	p := portaudio.HighLatencyParameters(input, output)
	p.Input.Channels = 1
	p.Output.Channels = 1

	e := &engine{
		pool:       karplus.NewPool(),
		store:      store,
		sampleRate: p.SampleRate,
	}
	e.Stream, err = portaudio.OpenStream(p, e.processAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	return e, nil
}

// processAudio runs on the audio thread. It must never block: both the
// capture push and the mix hold their locks only for a copy.
func (e *engine) processAudio(in, out []float32) {
	if e.listener != nil {
		e.listener.Push(in)
	}
	e.pool.Mix(out, e.store.Get(), e.sampleRate)
}
