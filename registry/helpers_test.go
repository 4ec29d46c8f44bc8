// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"errors"
	"io/ioutil"
)

func writeFile(path string, b []byte) error {
	return ioutil.WriteFile(path, b, 0o644)
}

func asCorrupt(err error, target **CorruptRegistryError) bool {
	return errors.As(err, target)
}
