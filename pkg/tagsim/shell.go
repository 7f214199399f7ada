package tagsim

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/tagrelay/pkg/tag"
)

const simKey = "$sim"

// Shell is the interactive front end of a Simulator.
type Shell struct {
	Shell      *ishell.Shell
	Sim        *Simulator
	OutputJSON bool
}

// NewShell creates a Shell around sim.
func NewShell(sim *Simulator) *Shell {
	s := &Shell{Shell: ishell.New(), Sim: sim}
	s.Shell.Set(simKey, s)
	s.Shell.SetPrompt("tagsim > ")
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// Run processes args as one command, or runs interactively without args.
func (s *Shell) Run(args ...string) error {
	if len(args) > 0 {
		return s.Shell.Process(args...)
	}
	s.Shell.Run()
	return nil
}

func shellFrom(c *ishell.Context) *Shell {
	return c.Get(simKey).(*Shell)
}

func (s *Shell) printRecord(c *ishell.Context, r tag.Record) {
	if s.OutputJSON {
		out, err := json.Marshal(map[string]interface{}{
			"id":      r.ID(),
			"hex_id":  r.HexID(),
			"card":    r.CardNumber,
			"country": r.CountryCode,
		})
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Printf("sent %s (hex %s)\n", r.ID(), r.HexID())
}

// parseTag parses "COUNTRY CARD" or "COUNTRY-CARD".
func parseTag(args []string) (uint32, uint64, error) {
	if len(args) == 1 {
		args = strings.SplitN(args[0], "-", 2)
	}
	if len(args) < 2 {
		return 0, 0, fmt.Errorf("COUNTRY and CARD required")
	}
	country, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid COUNTRY: %v", err)
	}
	card, err := strconv.ParseUint(args[1], 10, 40)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid CARD: %v", err)
	}
	return uint32(country), card, nil
}

var commands = []*ishell.Cmd{
	{
		Name:    "present",
		Aliases: []string{"p"},
		Help:    "[COUNTRY CARD | COUNTRY-CARD], random tag when omitted",
		Func: func(c *ishell.Context) {
			s := shellFrom(c)
			var r tag.Record
			var err error
			if len(c.Args) == 0 {
				r, err = s.Sim.PresentRandom()
			} else {
				var country uint32
				var card uint64
				if country, card, err = parseTag(c.Args); err == nil {
					r, err = s.Sim.Present(country, card)
				}
			}
			if err != nil {
				c.Err(err)
				return
			}
			s.printRecord(c, r)
		},
	},
	{
		Name: "raw",
		Help: "HEX... writes one frame of raw bytes",
		Func: func(c *ishell.Context) {
			f, err := shellFrom(c).Sim.Raw(strings.Join(c.Args, " "))
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("sent % x\n", f[:])
		},
	},
	{
		Name: "garbage",
		Help: "writes a frame with invalid digits",
		Func: func(c *ishell.Context) {
			f, err := shellFrom(c).Sim.Garbage()
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("sent %q\n", string(f[1:15]))
		},
	},
	{
		Name:    "repeat",
		Aliases: []string{"r"},
		Help:    "COUNT INTERVAL COUNTRY CARD, e.g. repeat 5 200ms 999 1234",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 3 {
				c.Err(fmt.Errorf("COUNT INTERVAL and tag required"))
				return
			}
			count, err := strconv.Atoi(c.Args[0])
			if err != nil {
				c.Err(fmt.Errorf("invalid COUNT: %v", err))
				return
			}
			interval, err := time.ParseDuration(c.Args[1])
			if err != nil {
				c.Err(fmt.Errorf("invalid INTERVAL: %v", err))
				return
			}
			country, card, err := parseTag(c.Args[2:])
			if err != nil {
				c.Err(err)
				return
			}
			if err := shellFrom(c).Sim.Repeat(context.Background(), country, card, count, interval); err != nil {
				c.Err(err)
				return
			}
			c.Printf("sent %d frames\n", count)
		},
	},
}
