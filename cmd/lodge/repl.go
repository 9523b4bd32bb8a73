package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ergochat/readline"

	"github.com/lodge-db/lodge"
	"github.com/lodge-db/lodge/rdt"
)

// REPL per se.
type REPL struct {
	Store *lodge.Store
	rl    *readline.Instance
}

var completer = readline.NewPrefixCompleter(
	readline.PcItem("help"),

	readline.PcItem("classes"),
	readline.PcItem("show"),
	readline.PcItem("get"),
	readline.PcItem("del"),
	readline.PcItem("find"),
	readline.PcItem("version"),

	readline.PcItem("exit"),
	readline.PcItem("quit"),
)

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func (repl *REPL) Open() (err error) {
	repl.rl, err = readline.NewEx(&readline.Config{
		Prompt:          "◌ ",
		HistoryFile:     ".lodge_cmd_log.txt",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return
	}
	repl.rl.CaptureExitSignal()
	return
}

func (repl *REPL) Close() error {
	if repl.rl != nil {
		_ = repl.rl.Close()
		repl.rl = nil
	}
	return nil
}

var ErrExit = errors.New("exiting")

func (repl *REPL) Run() error {
	for {
		line, err := repl.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		err = repl.Command(strings.TrimSpace(line))
		if err == ErrExit {
			return nil
		}
		if err != nil {
			fmt.Println(err.Error())
		}
	}
}

func (repl *REPL) Command(line string) error {
	if line == "" {
		return nil
	}
	parts := strings.Fields(line)
	cmd, args := parts[0], parts[1:]
	switch cmd {
	case "exit", "quit":
		return ErrExit
	case "help":
		fmt.Println("classes | show <class> | get <id> | del <id> | find <class> <field> <value> | version | exit")
		return nil
	case "classes":
		return repl.CommandClasses(args)
	case "show":
		return repl.CommandShow(args)
	case "get":
		return repl.CommandGet(args)
	case "del":
		return repl.CommandDel(args)
	case "find":
		return repl.CommandFind(args)
	case "version":
		v, err := repl.Store.SchemaVersion()
		if err == nil {
			fmt.Printf("schema version %d\n", v)
		}
		return err
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
}

func (repl *REPL) CommandClasses(args []string) error {
	classes, err := repl.Store.Classes()
	if err != nil {
		return err
	}
	for name, cid := range classes {
		fmt.Printf("%s\t%s\n", name, cid.String())
	}
	return nil
}

var HelpShow = errors.New("show Person")

func (repl *REPL) CommandShow(args []string) error {
	if len(args) != 1 {
		return HelpShow
	}
	cid, err := repl.Store.ClassByName(args[0])
	if err != nil {
		return err
	}
	for oid, err := range repl.Store.EnumerateObjects(cid) {
		if err != nil {
			return err
		}
		body, err := repl.Store.ObjectString(oid)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\n", oid.String(), body)
	}
	return nil
}

var HelpGet = errors.New("get 1e-3")

func (repl *REPL) CommandGet(args []string) error {
	if len(args) != 1 {
		return HelpGet
	}
	oid := rdt.ParseID(args[0])
	if oid == rdt.BadID {
		return HelpGet
	}
	body, err := repl.Store.ObjectString(oid)
	if err != nil {
		return err
	}
	fmt.Println(body)
	return nil
}

var HelpDel = errors.New("del 1e-3")

func (repl *REPL) CommandDel(args []string) error {
	if len(args) != 1 {
		return HelpDel
	}
	oid := rdt.ParseID(args[0])
	if oid == rdt.BadID {
		return HelpDel
	}
	err := repl.Store.DeleteObject(context.Background(), oid)
	if err == nil {
		fmt.Printf("%s deleted\n", oid.String())
	}
	return err
}

var HelpFind = errors.New("find Person name Ann")

func (repl *REPL) CommandFind(args []string) error {
	if len(args) != 3 {
		return HelpFind
	}
	cid, err := repl.Store.ClassByName(args[0])
	if err != nil {
		return err
	}
	oids, err := repl.Store.FindByValue(cid, args[1], rdt.NewString(args[2]))
	if err != nil {
		return err
	}
	for _, oid := range oids {
		body, err := repl.Store.ObjectString(oid)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\n", oid.String(), body)
	}
	return nil
}
