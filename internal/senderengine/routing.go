/*
 * MIT License
 *
 * Copyright (c) 2026 movsoftware contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package senderengine

import (
	"regexp"

	"github.com/movsoftware/filerelay/pkg/config"
)

// defaultPriority is assigned to a file matched by no priority rule
// (§6.3: "priority <0..100:regex>; first match wins; default 50").
const defaultPriority = 50

type compiledFilter struct {
	ident string
	re    *regexp.Regexp
}

type compiledPriority struct {
	priority int
	re       *regexp.Regexp
}

func compileFilters(rules []config.FilterRule) ([]compiledFilter, error) {
	out := make([]compiledFilter, 0, len(rules))
	for _, r := range rules {
		re, err := regexp.Compile(r.Regex)
		if err != nil {
			return nil, err
		}
		out = append(out, compiledFilter{ident: r.Ident, re: re})
	}
	return out, nil
}

func compilePriorities(rules []config.PriorityRule) ([]compiledPriority, error) {
	out := make([]compiledPriority, 0, len(rules))
	for _, r := range rules {
		re, err := regexp.Compile(r.Regex)
		if err != nil {
			return nil, err
		}
		out = append(out, compiledPriority{priority: r.Priority, re: re})
	}
	return out, nil
}

// identMatches reports whether name is selected for ident by any
// configured filter rule naming that ident.
func (e *Engine) identMatches(ident, name string) bool {
	for _, f := range e.filters {
		if f.ident == ident && f.re.MatchString(name) {
			return true
		}
	}
	return false
}

// priorityFor returns the priority earned by the first matching rule, or
// defaultPriority if none match.
func (e *Engine) priorityFor(name string) int {
	for _, p := range e.priorities {
		if p.re.MatchString(name) {
			return p.priority
		}
	}
	return defaultPriority
}
