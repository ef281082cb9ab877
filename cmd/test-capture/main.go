// Command test-capture is a manual test for audio capture.
// It records from the default input device, reports the end-of-speech
// decision for the recording, converts it to mono at the target rate and writes a WAV.
//
// Usage:
//
//	go run ./cmd/test-capture [--seconds 5] [--out capture.wav] [--trailing 700] [--rate 16000]
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/chaz8081/gostt-assistant/internal/audio"
	"github.com/chaz8081/gostt-assistant/internal/resample"
	"github.com/chaz8081/gostt-assistant/internal/vad"
)

func main() {
	seconds := flag.Int("seconds", 5, "how long to record")
	out := flag.String("out", "capture.wav", "where to write the converted recording")
	trailing := flag.Int("trailing", 700, "trailing silence window in milliseconds")
	rate := flag.Int("rate", 16000, "output sample rate")
	flag.Parse()

	engine, err := audio.NewEngine(nil)
	if err != nil {
		log.Fatalf("audio: %v", err)
	}
	defer engine.Close()

	sess, err := engine.StartCapture()
	if err != nil {
		log.Fatalf("capture: %v", err)
	}
	fmt.Printf("Recording %ds from the default device (%s)...\n", *seconds, sess.Format())

	time.Sleep(time.Duration(*seconds) * time.Second)

	rec, err := sess.Stop()
	if err != nil {
		log.Fatalf("stop: %v", err)
	}
	fmt.Printf("Captured %d samples (%s)\n", len(rec.Samples), rec.Duration().Round(time.Millisecond))

	rec.DownmixToMono()
	ended := vad.HasSpeechEnded(rec.Samples, rec.Format.SampleRate, *trailing)
	fmt.Printf("Speech ended in the last %dms: %v\n", *trailing, ended)

	if _, err := resample.Resample(rec, *rate); err != nil {
		log.Fatalf("resample: %v", err)
	}
	if err := rec.WriteWAV(*out); err != nil {
		log.Fatalf("write: %v", err)
	}
	fmt.Printf("Wrote %s (%d Hz mono)\n", *out, rec.Format.SampleRate)
}
