// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import "testing"

func TestParseArgs(t *testing.T) {
	cases := []struct {
		name        string
		args        []string
		wantCmd     string
		wantCmdHelp bool
		wantExit    bool
	}{
		{"no args", []string{"wrap"}, "", false, true},
		{"bare command", []string{"wrap", "install"}, "install", false, false},
		{"top-level help flag", []string{"wrap", "-h"}, "", false, true},
		{"top-level help word", []string{"wrap", "help"}, "", false, true},
		{"help for command", []string{"wrap", "help", "install"}, "install", true, false},
		{"command with args ignored", []string{"wrap", "install", "elm/http"}, "install", false, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cmd, cmdHelp, exit := parseArgs(c.args)
			if cmd != c.wantCmd || cmdHelp != c.wantCmdHelp || exit != c.wantExit {
				t.Fatalf("parseArgs(%v) = (%q, %v, %v), want (%q, %v, %v)",
					c.args, cmd, cmdHelp, exit, c.wantCmd, c.wantCmdHelp, c.wantExit)
			}
		})
	}
}

func TestExitErrorUnwrap(t *testing.T) {
	inner := errString("no upgrades available")
	ee := &exitError{err: inner, code: 100}

	if ee.ExitCode() != 100 {
		t.Fatalf("ExitCode() = %d, want 100", ee.ExitCode())
	}
	if ee.Error() != "no upgrades available" {
		t.Fatalf("Error() = %q", ee.Error())
	}
	var coder exitCoder = ee
	if coder.ExitCode() != 100 {
		t.Fatalf("exitCoder.ExitCode() = %d, want 100", coder.ExitCode())
	}
}

type errString string

func (e errString) Error() string { return string(e) }
