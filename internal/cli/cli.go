// Package cli parses hark's command line.
package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Command string

const (
	CommandDecode  Command = "decode"
	CommandStream  Command = "stream"
	CommandSpot    Command = "spot"
	CommandTTS     Command = "tts"
	CommandDenoise Command = "denoise"
	CommandServe   Command = "serve"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

// arity bounds positional arguments; max < 0 means unbounded.
type arity struct {
	min, max int
	usage    string
}

var validCommands = map[Command]arity{
	CommandDecode:  {min: 1, max: -1, usage: "WAV..."},
	CommandStream:  {min: 1, max: 1, usage: "WAV"},
	CommandSpot:    {min: 1, max: 1, usage: "WAV"},
	CommandTTS:     {},
	CommandDenoise: {min: 2, max: 2, usage: "IN.wav OUT.wav"},
	CommandServe:   {},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

// commandFlags lists the flags each command accepts after its name.
var commandFlags = map[Command]map[string]struct{}{
	CommandDecode: {"--bias": {}},
	CommandStream: {"--bias": {}},
	CommandSpot:   {"--bias": {}},
	CommandTTS:    {"--text": {}, "--sid": {}, "--speed": {}, "--output": {}},
	CommandServe:  {"--listen": {}, "--mode": {}},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	LogLevel   string
	ShowHelp   bool
	Args       []string

	// Bias is per-stream hotword or keyword text for decode, stream, and spot.
	Bias string

	Text   string
	SID    int
	Speed  float32
	Output string

	Listen string
	Mode   string
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true, Speed: 1, Mode: "online"}
	haveCommand := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		value := func() (string, error) {
			i++
			if i >= len(args) {
				return "", fmt.Errorf("%s requires a value", arg)
			}
			return args[i], nil
		}

		if haveCommand {
			if !strings.HasPrefix(arg, "-") || arg == "-" {
				parsed.Args = append(parsed.Args, arg)
				continue
			}
			if _, ok := commandFlags[parsed.Command][arg]; !ok {
				return Parsed{}, fmt.Errorf("unknown flag for %s: %s", parsed.Command, arg)
			}
			v, err := value()
			if err != nil {
				return Parsed{}, err
			}
			if err := parsed.setCommandFlag(arg, v); err != nil {
				return Parsed{}, err
			}
			continue
		}

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		case "--log-level":
			v, err := value()
			if err != nil {
				return Parsed{}, err
			}
			parsed.LogLevel = v
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			haveCommand = true
		}
	}

	if err := parsed.check(); err != nil {
		return Parsed{}, err
	}
	return parsed, nil
}

func (p *Parsed) setCommandFlag(flag, value string) error {
	switch flag {
	case "--bias":
		p.Bias = value
	case "--text":
		p.Text = value
	case "--sid":
		sid, err := strconv.Atoi(value)
		if err != nil || sid < 0 {
			return fmt.Errorf("--sid must be a non-negative integer, got %q", value)
		}
		p.SID = sid
	case "--speed":
		speed, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return fmt.Errorf("--speed must be a number, got %q", value)
		}
		p.Speed = float32(speed)
	case "--output":
		p.Output = value
	case "--listen":
		p.Listen = value
	case "--mode":
		switch value {
		case "online", "offline", "keyword":
			p.Mode = value
		default:
			return fmt.Errorf("--mode must be online, offline, or keyword, got %q", value)
		}
	}
	return nil
}

func (p Parsed) check() error {
	a := validCommands[p.Command]
	n := len(p.Args)
	switch {
	case a.max == 0 && n > 0:
		return fmt.Errorf("unexpected arguments after command %q", p.Command)
	case n < a.min || (a.max > 0 && n > a.max):
		return fmt.Errorf("usage: %s %s", p.Command, a.usage)
	}

	if p.Command == CommandTTS {
		if strings.TrimSpace(p.Text) == "" {
			return errors.New("tts requires --text")
		}
		if strings.TrimSpace(p.Output) == "" {
			return errors.New("tts requires --output")
		}
	}
	return nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--log-level LEVEL] <command> [args]

Commands:
  decode WAV...              Decode whole files with the offline model
  stream WAV                 Feed a file through the streaming model in 100 ms pieces
  spot WAV                   Report keyword detections in a file
  tts --text T --output OUT  Synthesize speech (--sid N, --speed F)
  denoise IN.wav OUT.wav     Remove background noise
  serve                      Host a recognizer for the remote backend (--listen ADDR, --mode M)
  doctor                     Run configuration and environment checks
  version                    Print version information
  help                       Show this help

Flags:
  --config PATH      Config file path (default: $XDG_CONFIG_HOME/hark/config.jsonc)
  --log-level LEVEL  debug, info, warn, or error (default: info)
  --bias TEXT        Per-stream hotwords (decode, stream) or keywords (spot)
  -h, --help         Show help
  --version          Show version
`, binaryName)
}
