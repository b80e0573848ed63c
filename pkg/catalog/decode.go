// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package catalog

import (
	"encoding/json"
	"errors"
)

// RepositoryList is the decoded catalog body.
type RepositoryList struct {
	Repositories []string `json:"repositories"`
}

var errNotObject = errors.New("catalog body is not a JSON object")

// Decode parses a catalog body. The body must be a JSON object; a missing,
// null or malformed "repositories" field yields an empty list. Order is
// preserved.
func Decode(body []byte) (RepositoryList, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return RepositoryList{}, &Error{Op: "decode", Kind: KindDecode, Err: err}
	}
	if obj == nil {
		return RepositoryList{}, &Error{Op: "decode", Kind: KindDecode, Err: errNotObject}
	}

	list := RepositoryList{Repositories: []string{}}
	raw, ok := obj["repositories"]
	if !ok {
		return list, nil
	}
	var repos []string
	if err := json.Unmarshal(raw, &repos); err != nil || repos == nil {
		return list, nil
	}
	list.Repositories = repos
	return list, nil
}
