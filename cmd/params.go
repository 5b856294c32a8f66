package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/specpol/specpol/internal/params"
)

var paramsFile string // parameter table edited by the params subcommands

// paramsGet writes the value of each key, one per line. Missing keys are
// reported together after the found ones.
func paramsGet(w io.Writer, store *params.Store, keys []string) error {
	var missing []string
	for _, k := range keys {
		v, ok := store.Get(k)
		if !ok {
			missing = append(missing, k)
			continue
		}
		_, _ = fmt.Fprintln(w, v)
	}
	if len(missing) > 0 {
		return fmt.Errorf("not found: %v", missing)
	}
	return nil
}

// paramsAdd applies assignment lines and saves the table.
func paramsAdd(store *params.Store, lines []string) error {
	for _, line := range lines {
		if err := store.Apply(line); err != nil {
			return err
		}
	}
	return store.Save()
}

// paramsRem removes keys and saves the table. Unknown keys are logged.
func paramsRem(store *params.Store, keys []string) error {
	for _, k := range keys {
		if !store.Remove(k) {
			logrus.Warnf("%s not found", k)
		}
	}
	return store.Save()
}

// paramsList writes every entry as "key\t:=\tvalue".
func paramsList(w io.Writer, store *params.Store) {
	for _, k := range store.Keys() {
		v, _ := store.Get(k)
		_, _ = fmt.Fprintf(w, "%s\t:=\t%s\n", k, v)
	}
}

func loadParamsOrDie(name string) *params.Store {
	store, err := params.Load(paramsFile)
	if err != nil {
		logrus.Fatalf("specpol params %s: %v", name, err)
	}
	return store
}

// paramsCmd groups the parameter table subcommands
var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Read and edit the parameter table",
}

var paramsGetCmd = &cobra.Command{
	Use:   "get KEY...",
	Short: "Print parameter values",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := paramsGet(os.Stdout, loadParamsOrDie("get"), args); err != nil {
			logrus.Fatalf("specpol params get: %v", err)
		}
	},
}

var paramsAddCmd = &cobra.Command{
	Use:   "add KEY=VALUE...",
	Short: "Set (=), replace (:=), prepend to (+=) or remove from (-=) parameters",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := paramsAdd(loadParamsOrDie("add"), args); err != nil {
			if errors.Is(err, params.ErrMalformedLine) {
				logrus.Fatalf("specpol params add: %v; expected key=value, key:=value, key+=value or key-=value", err)
			}
			logrus.Fatalf("specpol params add: %v", err)
		}
	},
}

var paramsRemCmd = &cobra.Command{
	Use:   "rem KEY...",
	Short: "Remove parameters",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := paramsRem(loadParamsOrDie("rem"), args); err != nil {
			logrus.Fatalf("specpol params rem: %v", err)
		}
	},
}

var paramsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every parameter",
	Run: func(cmd *cobra.Command, args []string) {
		paramsList(os.Stdout, loadParamsOrDie("list"))
	},
}

func init() {
	paramsCmd.PersistentFlags().StringVar(&paramsFile, "file", "specpol.toml", "Parameter table file")
	paramsCmd.AddCommand(paramsGetCmd, paramsAddCmd, paramsRemCmd, paramsListCmd)
	rootCmd.AddCommand(paramsCmd)
}
