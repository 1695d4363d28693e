// Command render pre-renders a score to PCM ahead of realtime and plays it
// back. Useful for checking the synthesized sound without an input device.
package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/hajimehoshi/oto/v2"
	"github.com/metalblueberry/plectrum/pkg/guitar"
	"github.com/metalblueberry/plectrum/pkg/karplus"
	"github.com/metalblueberry/plectrum/pkg/score"
	"github.com/metalblueberry/plectrum/pkg/scrub"
	"github.com/spf13/cobra"
)

const sampleRate = 44100

var (
	flagTempo  int
	flagGuitar string
)

var rootCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the score offline and play the result",
	RunE:  run,
}

func init() {
	rootCmd.Flags().IntVar(&flagTempo, "tempo", 0, "tempo override in BPM (0 uses the score tempo)")
	rootCmd.Flags().StringVar(&flagGuitar, "guitar", "acoustic", "timbre preset: acoustic, electric, classical, bass, twelve")
}

func main() {
	cobra.CheckErr(rootCmd.Execute())
}

func run(cmd *cobra.Command, args []string) error {
	s := score.Demo()
	config := guitar.Preset(flagGuitar)

	samples := renderScore(s, flagTempo, config)
	log.Printf("rendered %d samples (%.1fs)", len(samples), float64(len(samples))/sampleRate)

	otoCtx, ready, err := oto.NewContext(sampleRate, 1, 2)
	if err != nil {
		return fmt.Errorf("failed to initialize playback: %w", err)
	}
	<-ready

	player := otoCtx.NewPlayer(bytes.NewReader(toPCM(samples)))
	defer player.Close()
	player.Play()
	for player.IsPlaying() {
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}

// renderScore walks every division of the score, spawns voices at their
// onsets and mixes the pool division by division into one buffer.
func renderScore(s *score.Score, tempoOverride int, config guitar.Config) []float32 {
	scrubber := scrub.New(s, tempoOverride)
	spd := scrubber.SecondsPerDivision()
	total := int(math.Round(scrubber.TotalDuration().Seconds() * sampleRate))
	out := make([]float32, total)

	pool := karplus.NewPool()
	perDivision := spd * sampleRate
	offset := 0

	for m := range s.Measures {
		for d := 0; d < int(s.DivisionsPerMeasure); d++ {
			for _, n := range s.NotesAt(m, d) {
				if !n.Fretted() {
					continue
				}
				frequency := score.Frequency(n, config.ScaleLength, config.CapoFret)
				pool.Add(karplus.NewVoice(frequency, spd*float64(n.Duration), sampleRate, config))
			}

			end := offset + int(math.Round(perDivision))
			if end > total {
				end = total
			}
			pool.Mix(out[offset:end], config, sampleRate)
			offset = end
		}
	}
	return out
}

// toPCM converts float samples to 16-bit little-endian mono.
func toPCM(samples []float32) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(s*math.MaxInt16)))
	}
	return out
}
