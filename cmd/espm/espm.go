/*

A simple CLI app to inspect Bethesda-game plugin files passed as
arguments: parse them, probe their validity, or check two plugins for
overlapping records.

*/
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/icza/espm"
)

const (
	appName    = "espm"
	appVersion = "v0.1.0"
)

const (
	exitCodeFailedToParse = 1
	exitCodeInvalidGame   = 2
)

var gameFlag string

var gameIDs = map[string]espm.GameId{
	"morrowind":  espm.Morrowind,
	"oblivion":   espm.Oblivion,
	"skyrim":     espm.Skyrim,
	"skyrimse":   espm.SkyrimSE,
	"skyrimvr":   espm.SkyrimVR,
	"fallout3":   espm.Fallout3,
	"falloutnv":  espm.FalloutNV,
	"fallout4":   espm.Fallout4,
	"fallout4vr": espm.Fallout4VR,
}

func resolveGame() (espm.GameId, error) {
	g, ok := gameIDs[gameFlag]
	if !ok {
		return 0, fmt.Errorf("unknown --game value %q", gameFlag)
	}
	return g, nil
}

func main() {
	root := &cobra.Command{
		Use:     appName,
		Short:   "espm inspects Bethesda-game plugin files",
		Version: appVersion,
	}
	root.PersistentFlags().StringVar(&gameFlag, "game", "skyrimse",
		"game dialect: morrowind, oblivion, skyrim, skyrimse, skyrimvr, fallout3, falloutnv, fallout4, fallout4vr")

	root.AddCommand(parseCmd(), isValidCmd(), overlapCmd())

	if err := root.Execute(); err != nil {
		os.Exit(exitCodeFailedToParse)
	}
}

func parseCmd() *cobra.Command {
	var headerOnly bool

	cmd := &cobra.Command{
		Use:   "parse PLUGIN",
		Short: "parse a plugin and print its header fields as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			game, err := resolveGame()
			if err != nil {
				os.Exit(exitCodeInvalidGame)
			}

			p := espm.New(game, args[0])
			if err := p.ParseFile(headerOnly); err != nil {
				fmt.Fprintf(os.Stderr, "failed to parse plugin: %v\n", err)
				os.Exit(exitCodeFailedToParse)
			}

			return printSummary(p)
		},
	}
	cmd.Flags().BoolVar(&headerOnly, "header-only", false, "parse only the header record, skip the record body")
	return cmd
}

func isValidCmd() *cobra.Command {
	var headerOnly bool

	cmd := &cobra.Command{
		Use:   "is-valid PLUGIN",
		Short: "probe whether a file looks like a plugin for --game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			game, err := resolveGame()
			if err != nil {
				os.Exit(exitCodeInvalidGame)
			}

			valid := espm.IsValid(game, args[0], headerOnly)
			fmt.Println(valid)
			if !valid {
				os.Exit(exitCodeFailedToParse)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&headerOnly, "header-only", true, "probe only the header record")
	return cmd
}

func overlapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overlap PLUGIN_A PLUGIN_B",
		Short: "report whether two plugins define any of the same records",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			game, err := resolveGame()
			if err != nil {
				os.Exit(exitCodeInvalidGame)
			}

			a := espm.New(game, args[0])
			if err := a.ParseFile(false); err != nil {
				fmt.Fprintf(os.Stderr, "failed to parse %s: %v\n", args[0], err)
				os.Exit(exitCodeFailedToParse)
			}

			b := espm.New(game, args[1])
			if err := b.ParseFile(false); err != nil {
				fmt.Fprintf(os.Stderr, "failed to parse %s: %v\n", args[1], err)
				os.Exit(exitCodeFailedToParse)
			}

			fmt.Println(a.OverlapsWith(b))
			return nil
		},
	}
	return cmd
}

// summary is the JSON shape printed by the parse subcommand. It is
// deliberately a plain struct rather than *espm.Plugin itself, since the
// Plugin's fields are unexported.
type summary struct {
	Filename            string   `json:"filename"`
	Masters             []string `json:"masters"`
	Description         string   `json:"description,omitempty"`
	HeaderVersion       float32  `json:"headerVersion,omitempty"`
	IsMaster            bool     `json:"isMaster"`
	IsLightMaster       bool     `json:"isLightMaster"`
	IsEmpty             bool     `json:"isEmpty"`
	CountOverrides      int      `json:"countOverrideRecords"`
	IsValidLightMaster  bool     `json:"isValidAsLightMaster"`
}

func printSummary(p *espm.Plugin) error {
	filename, _ := p.Filename()
	description, _ := p.Description()
	headerVersion, _ := p.HeaderVersion()

	s := summary{
		Filename:           filename,
		Masters:            p.Masters(),
		Description:        description,
		HeaderVersion:      headerVersion,
		IsMaster:           p.IsMasterFile(),
		IsLightMaster:      p.IsLightMasterFile(),
		IsEmpty:            p.IsEmpty(),
		CountOverrides:     p.CountOverrideRecords(),
		IsValidLightMaster: p.IsValidAsLightMaster(),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
