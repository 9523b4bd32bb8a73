package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lodge-db/lodge"
	"github.com/lodge-db/lodge/utils"
)

var rootCmd = &cobra.Command{
	Use:          "lodge",
	Short:        "Embedded object store over pebble",
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("data", ".lodge", "store directory")
	pf.Uint64("src", 1, "replica source id")
	pf.String("name", "", "store name")
	pf.Bool("verbose", false, "debug logging")
	_ = viper.BindPFlags(pf)
	viper.SetEnvPrefix("LODGE")
	viper.AutomaticEnv()

	rootCmd.AddCommand(initCmd, classesCmd, showCmd, versionCmd, shellCmd)
}

func openStore() (*lodge.Store, error) {
	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	return lodge.Open(viper.GetString("data"), lodge.Options{
		Src:    viper.GetUint64("src"),
		Name:   viper.GetString("name"),
		Logger: utils.NewDefaultLogger(level),
	})
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a store in the data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		fmt.Printf("store ready at %s, last id %s\n",
			viper.GetString("data"), st.Last().String())
		return st.Close()
	},
}

var classesCmd = &cobra.Command{
	Use:   "classes",
	Short: "List registered classes",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		classes, err := st.Classes()
		if err != nil {
			return err
		}
		names := make([]string, 0, len(classes))
		for name := range classes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			cid := classes[name]
			form, err := st.ClassFields(cid)
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%s\t%d fields\n", name, cid.String(), len(form))
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <class>",
	Short: "Dump every object of a class",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		cid, err := st.ClassByName(args[0])
		if err != nil {
			return err
		}
		for oid, err := range st.EnumerateObjects(cid) {
			if err != nil {
				return err
			}
			body, err := st.ObjectString(oid)
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%s\n", oid.String(), body)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the store's schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		v, err := st.SchemaVersion()
		if err != nil {
			return err
		}
		fmt.Printf("schema version %d\n", v)
		return nil
	},
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive shell over the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		repl := &REPL{Store: st}
		if err = repl.Open(); err != nil {
			return err
		}
		defer repl.Close()
		return repl.Run()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
