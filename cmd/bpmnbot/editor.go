package bpmnbot

import (
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

var fallbackEditors = []string{"nano", "vim", "vi", "emacs"}

// editorCommand resolves the editor from VISUAL or EDITOR. Both may carry
// arguments, e.g. "code --wait".
func editorCommand(lookPath func(string) (string, error)) ([]string, error) {
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if fields := strings.Fields(os.Getenv(env)); len(fields) > 0 {
			return fields, nil
		}
	}

	candidates := fallbackEditors
	if runtime.GOOS == "windows" {
		candidates = []string{"notepad"}
	}
	for _, e := range candidates {
		if _, err := lookPath(e); err == nil {
			return []string{e}, nil
		}
	}
	return nil, errors.New("no editor found. Please set the EDITOR environment variable")
}

func openInEditor(path string) error {
	argv, err := editorCommand(exec.LookPath)
	if err != nil {
		return err
	}

	cmd := exec.Command(argv[0], append(argv[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
