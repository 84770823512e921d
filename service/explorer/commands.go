package explorer

import (
	"strconv"
	"strings"
)

// mode is the explorer's position in the command dispatch loop.
type mode int

const (
	modeMenu mode = iota
	modeNavigate
	modePick
	modeAwaitAddress
	modeAwaitTxID
	modeAwaitHandle
)

func (m mode) String() string {
	switch m {
	case modeMenu:
		return "menu"
	case modeNavigate:
		return "navigate"
	case modePick:
		return "pick"
	case modeAwaitAddress:
		return "await_address"
	case modeAwaitTxID:
		return "await_txid"
	case modeAwaitHandle:
		return "await_handle"
	default:
		return "unknown"
	}
}

type commandKind int

const (
	cmdNone commandKind = iota
	cmdMenu
	cmdExit
	cmdHelp
	cmdAddress
	cmdTx
	cmdLoad
	cmdDump
	cmdList
	cmdInput
	cmdOutput
	cmdShow
	cmdGoto
	cmdJQ
	cmdPick
	cmdUnknown
)

// command is one parsed operator line. Index is already 0-based.
type command struct {
	kind  commandKind
	arg   string
	index int
}

// usageError is a parse failure shown to the operator verbatim.
type usageError string

func (e usageError) Error() string { return string(e) }

const (
	errInputFormat  usageError = "Invalid input command format."
	errOutputFormat usageError = "Invalid output command format."
	errSelection    usageError = "Invalid selection."
	errGotoFormat   usageError = "Usage: goto N"
	errJQFormat     usageError = "Usage: jq <expression>"
)

// parseCommand turns a raw line into a command for the given mode. Numbers
// typed by the operator are 1-based; the returned index is 0-based.
func parseCommand(m mode, line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{kind: cmdNone}, nil
	}

	head, rest, _ := strings.Cut(line, " ")
	head = strings.ToLower(head)
	rest = strings.TrimSpace(rest)

	switch head {
	case "m", "menu":
		if rest == "" {
			return command{kind: cmdMenu}, nil
		}
	case "exit", "quit":
		return command{kind: cmdExit}, nil
	case "help", "?":
		return command{kind: cmdHelp}, nil
	}

	switch m {
	case modeAwaitAddress:
		return command{kind: cmdAddress, arg: line}, nil
	case modeAwaitTxID:
		return command{kind: cmdTx, arg: line}, nil
	case modeAwaitHandle:
		return command{kind: cmdLoad, arg: line}, nil
	case modePick:
		n, err := strconv.Atoi(line)
		if err != nil {
			return command{}, errSelection
		}
		return command{kind: cmdPick, index: n - 1}, nil
	case modeMenu:
		switch head {
		case "1":
			return command{kind: cmdAddress, arg: rest}, nil
		case "2":
			return command{kind: cmdTx, arg: rest}, nil
		case "3":
			return command{kind: cmdLoad, arg: rest}, nil
		case "4":
			return command{kind: cmdExit}, nil
		}
	case modeNavigate:
		switch head {
		case "show":
			return command{kind: cmdShow}, nil
		case "goto":
			n, err := strconv.Atoi(rest)
			if err != nil {
				return command{}, errGotoFormat
			}
			return command{kind: cmdGoto, index: n - 1}, nil
		case "jq":
			if rest == "" {
				return command{}, errJQFormat
			}
			return command{kind: cmdJQ, arg: rest}, nil
		}
		if cmd, ok, err := parseFollow(head); ok {
			return cmd, err
		}
	}

	// Available from both menu and navigate.
	switch head {
	case "address":
		return command{kind: cmdAddress, arg: rest}, nil
	case "tx":
		return command{kind: cmdTx, arg: rest}, nil
	case "load":
		return command{kind: cmdLoad, arg: rest}, nil
	case "dump":
		return command{kind: cmdDump, arg: rest}, nil
	case "list":
		return command{kind: cmdList}, nil
	}

	return command{kind: cmdUnknown, arg: line}, nil
}

// parseFollow parses iN and oN. ok reports whether the word looked like a
// follow command at all.
func parseFollow(word string) (command, bool, error) {
	if len(word) == 0 {
		return command{}, false, nil
	}
	var kind commandKind
	var formatErr usageError
	switch word[0] {
	case 'i':
		kind, formatErr = cmdInput, errInputFormat
	case 'o':
		kind, formatErr = cmdOutput, errOutputFormat
	default:
		return command{}, false, nil
	}

	digits := word[1:]
	if digits == "" {
		return command{}, true, formatErr
	}
	n, err := strconv.Atoi(digits)
	if err != nil || strings.ContainsAny(digits, "+-") {
		return command{}, true, formatErr
	}
	return command{kind: kind, index: n - 1}, true, nil
}
