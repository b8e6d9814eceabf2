/*
Copyright 2021 Stefan Prodan

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package params

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// setter assigns a caller supplied value to the matching field.
type setter func(p *InstanceParameters, key string, value any) error

// aliases lists every accepted parameter key. Keys are matched
// case-insensitively and unknown keys are ignored.
var aliases = []struct {
	keys []string
	set  setter
}{
	{[]string{"token"}, stringSetter(func(p *InstanceParameters, v string) { p.AccessToken = v })},
	{[]string{"namespace"}, stringSetter(func(p *InstanceParameters, v string) { p.Namespace = v })},
	{[]string{"service_name", "servicename"}, stringSetter(func(p *InstanceParameters, v string) { p.Name = v })},
	{[]string{"master_url", "masterurl"}, stringSetter(func(p *InstanceParameters, v string) { p.URL = v })},
	{[]string{"expose_port", "exposeport"}, intSetter(func(p *InstanceParameters, v int) { p.ExposePort = v })},
	{[]string{"cluster_name", "clustername"}, stringSetter(func(p *InstanceParameters, v string) { p.ClusterName = v })},
	{[]string{"identity"}, stringSetter(func(p *InstanceParameters, v string) { p.Identity = v })},
}

type aliasTable map[string]setter

func newAliasTable() (aliasTable, error) {
	table := make(aliasTable)
	for _, a := range aliases {
		for _, key := range a.keys {
			k := strings.ToLower(key)
			if _, found := table[k]; found {
				return nil, fmt.Errorf("duplicate parameter alias %q", k)
			}
			table[k] = a.set
		}
	}
	return table, nil
}

func (t aliasTable) lookup(key string) (setter, bool) {
	s, ok := t[strings.ToLower(key)]
	return s, ok
}

func stringSetter(assign func(p *InstanceParameters, v string)) setter {
	return func(p *InstanceParameters, key string, value any) error {
		switch v := value.(type) {
		case nil:
			return nil
		case string:
			assign(p, v)
		case json.Number:
			assign(p, v.String())
		case float64:
			assign(p, strconv.FormatFloat(v, 'f', -1, 64))
		case bool:
			assign(p, strconv.FormatBool(v))
		default:
			return &ValidationError{Field: key, Reason: fmt.Sprintf("has unsupported type %T", value)}
		}
		return nil
	}
}

func intSetter(assign func(p *InstanceParameters, v int)) setter {
	return func(p *InstanceParameters, key string, value any) error {
		var (
			n   int
			err error
		)
		switch v := value.(type) {
		case nil:
			return nil
		case string:
			n, err = strconv.Atoi(strings.TrimSpace(v))
		case json.Number:
			n, err = strconv.Atoi(v.String())
		case float64:
			n = int(v)
			if float64(n) != v {
				err = fmt.Errorf("%v is not an integer", v)
			}
		case int:
			n = v
		default:
			err = fmt.Errorf("unsupported type %T", value)
		}
		if err != nil {
			return &ValidationError{Field: key, Reason: "must be an integer"}
		}
		assign(p, n)
		return nil
	}
}
