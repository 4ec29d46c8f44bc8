// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
)

const versionShortHelp = `Display version`
const versionLongHelp = `
Display the version of this tool.
`

const toolVersion = "0.1.0"

type versionCommand struct{}

func (cmd *versionCommand) Name() string      { return "version" }
func (cmd *versionCommand) Args() string      { return "" }
func (cmd *versionCommand) ShortHelp() string { return versionShortHelp }
func (cmd *versionCommand) LongHelp() string  { return versionLongHelp }
func (cmd *versionCommand) Hidden() bool      { return false }

func (cmd *versionCommand) Register(fs *flag.FlagSet) {}

func (cmd *versionCommand) Run(ctx context.Context, loggers Loggers, args []string) error {
	fmt.Println(toolVersion)
	return nil
}
