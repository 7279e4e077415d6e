package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"kosketus"
	"kosketus/asset"
	"kosketus/engine"
	"kosketus/interp"
	"kosketus/midi"
	"kosketus/oto"
	"kosketus/version"
)

func main() {
	listMIDI := flag.Bool("l", false, "List MIDI input devices and exit.")
	midiDevice := flag.Int("m", -1, "Open the MIDI input device with this index; note-ons trigger bank elements.")
	offline := flag.Bool("offline", false, "Do not open an audio output; the export command renders to a .wav file instead.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if *listMIDI {
		input := midi.NewInput()
		defer input.Close()
		for i, name := range input.Devices() {
			fmt.Printf("%v: %v\n", i, name)
		}
		os.Exit(0)
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(0)
	}
	bankPath := flag.Arg(0)
	bank, err := kosketus.ReadBank(bankPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not read bank: %v\n", err)
		os.Exit(1)
	}

	synth := interp.NewSynth()
	loader := asset.FileLoader{Root: filepath.Dir(bankPath)}
	registry := asset.NewRegistry(loader, synth)
	eng := engine.New(registry, synth)
	eng.SetAlertFunc(func(a kosketus.Alert) {
		fmt.Fprintf(os.Stderr, "%v: %v: %v\n", a.Priority, a.Name, a.Message)
	})

	if !*offline {
		audioContext, err := oto.NewContext()
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not acquire oto AudioContext: %v\n", err)
			os.Exit(1)
		}
		defer audioContext.Close()
		output := audioContext.Output()
		defer output.Close()
		player := interp.Play(synth, output)
		defer player.Close()
	}

	if *midiDevice >= 0 {
		input := midi.NewInput()
		defer input.Close()
		err := input.Open(*midiDevice, func(note byte, on bool) {
			if !on {
				return
			}
			element, ok := bank.ElementForNote(note)
			if !ok {
				return
			}
			triggerElement(eng, element.Ref)
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not open MIDI input: %v\n", err)
			os.Exit(1)
		}
	}

	repl(eng, synth, &bank, *offline)
}

// triggerElement maps a raw trigger onto the engine the way the presentation
// layer would: in looping mode the trigger toggles a loop, otherwise it plays
// a one-off voice, and an open recording captures it either way.
func triggerElement(eng *engine.Engine, ref string) {
	ctx := context.Background()
	if eng.IsRecording() {
		eng.RecordEvent(ctx, ref)
	}
	if eng.Mode() == engine.ModeLooping {
		eng.ToggleLoop(ctx, ref)
	} else {
		eng.PlayOneOff(ctx, ref)
	}
}

func repl(eng *engine.Engine, synth *interp.Synth, bank *kosketus.Bank, offline bool) {
	ctx := context.Background()
	refFor := func(name string) (string, bool) {
		for _, e := range bank.Elements {
			if e.Name == name {
				return e.Ref, true
			}
		}
		fmt.Printf("no element %q in bank\n", name)
		return "", false
	}
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("type help for commands")
	for fmt.Print("> "); scanner.Scan(); fmt.Print("> ") {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]
		var err error
		switch cmd {
		case "help":
			printHelp()
		case "ls":
			for _, e := range bank.Elements {
				fmt.Printf("%v\t%v\n", e.Name, e.Ref)
			}
		case "play":
			if ref, ok := refFor(arg(args, 0)); ok {
				err = eng.PlayOneOff(ctx, ref)
			}
		case "loop":
			if ref, ok := refFor(arg(args, 0)); ok {
				var looping bool
				looping, err = eng.ToggleLoop(ctx, ref)
				if err == nil {
					fmt.Printf("looping: %v\n", looping)
				}
			}
		case "mode":
			switch arg(args, 0) {
			case "looping":
				eng.SetMode(engine.ModeLooping)
			case "oneoff":
				eng.SetMode(engine.ModeOneOff)
			default:
				fmt.Println("mode oneoff|looping")
			}
		case "rec":
			fmt.Printf("recording trajectory %v\n", eng.StartRecording())
		case "ev":
			if ref, ok := refFor(arg(args, 0)); ok {
				if err = eng.RecordEvent(ctx, ref); err == nil {
					err = eng.PlayOneOff(ctx, ref)
				}
			}
		case "recstop":
			err = eng.StopRecording()
		case "trajs":
			for _, t := range eng.Trajectories() {
				fmt.Printf("%v\tevents: %v\tplaying: %v\n", t.ID, len(t.Events), t.Playing)
			}
		case "tplay":
			err = eng.PlayTrajectory(argInt64(args, 0))
		case "tstop":
			err = eng.StopTrajectory(argInt64(args, 0))
		case "tclear":
			err = eng.ClearTrajectory(argInt64(args, 0))
		case "seq":
			fmt.Printf("sequence %v is now active\n", eng.AddSequence())
		case "el":
			if ref, ok := refFor(arg(args, 0)); ok {
				err = eng.AddElement(ctx, ref)
			}
		case "bpm":
			err = eng.SetGlobalBPM(argInt(args, 0))
		case "mute":
			err = eng.SetMuted(argInt(args, 0), argInt(args, 1) != 0)
		case "solo":
			err = eng.SetSolo(argInt(args, 0), argInt(args, 1) != 0)
		case "vol":
			err = eng.SetVolume(argInt(args, 0), argFloat(args, 1))
		case "export":
			if !offline {
				fmt.Println("export requires -offline, otherwise it would steal audio from the output")
				continue
			}
			err = export(synth, arg(args, 0), argFloat(args, 1))
		case "quit", "exit":
			return
		default:
			fmt.Printf("unknown command %q, type help\n", cmd)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
	}
}

// export renders the next seconds of the current graph into a .wav file.
func export(synth *interp.Synth, path string, seconds float64) error {
	if path == "" || seconds <= 0 {
		return fmt.Errorf("usage: export <file.wav> <seconds>")
	}
	buffer := make(kosketus.AudioBuffer, int(seconds*interp.SampleRate))
	synth.Process(buffer)
	contents, err := kosketus.Wav(buffer, false)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, contents, 0644); err != nil {
		return fmt.Errorf("could not write %v: %w", path, err)
	}
	return nil
}

func arg(args []string, i int) string {
	if i >= len(args) {
		return ""
	}
	return args[i]
}

func argInt(args []string, i int) int {
	v, _ := strconv.Atoi(arg(args, i))
	return v
}

func argInt64(args []string, i int) int64 {
	v, _ := strconv.ParseInt(arg(args, i), 10, 64)
	return v
}

func argFloat(args []string, i int) float64 {
	v, _ := strconv.ParseFloat(arg(args, i), 64)
	return v
}

func printHelp() {
	fmt.Print(`ls                      list bank elements
play <element>          play a one-off voice
loop <element>          toggle a looping voice
mode oneoff|looping     switch exploration mode (clears loops)
rec                     start recording a trajectory
ev <element>            record (and play) a trigger
recstop                 stop recording and start playback
trajs                   list trajectories
tplay/tstop/tclear <id> control one trajectory
seq                     add a sequence and make it active
el <element>            append an element to the active sequence
bpm <n>                 set the global BPM
mute <id> 0|1           mute/unmute a sequence
solo <id> 0|1           solo/unsolo a sequence
vol <id> <v>            set sequence volume, 0..1
export <file> <secs>    render to .wav (only with -offline)
quit
`)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] bank.yml\n", os.Args[0])
	flag.PrintDefaults()
}
