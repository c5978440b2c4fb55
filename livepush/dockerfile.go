package livepush

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/moby/buildkit/frontend/dockerfile/parser"

	"github.com/projecteru2/barge/types"
)

// instruction kinds livepush acts on
const (
	KindFrom    = "FROM"
	KindCopy    = "COPY"
	KindAdd     = "ADD"
	KindRun     = "RUN"
	KindWorkdir = "WORKDIR"
	KindEnv     = "ENV"
)

// Instruction is one dockerfile instruction
type Instruction struct {
	Kind     string
	Sources  []string // COPY and ADD sources
	Dest     string
	From     string // COPY --from
	Command  []string
	JSON     bool // exec form
	Env      map[string]string
	Original string
}

// Stage is one FROM block
type Stage struct {
	Index        int
	Name         string
	From         string
	Instructions []Instruction
}

// Dockerfile is a parsed dockerfile
type Dockerfile struct {
	Stages []Stage
}

// ParseDockerfile parses content into stages
func ParseDockerfile(content []byte) (*Dockerfile, error) {
	result, err := parser.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parse dockerfile"), types.ErrBadDockerfile)
	}
	d := &Dockerfile{}
	for _, node := range result.AST.Children {
		kind := strings.ToUpper(node.Value)
		args := []string{}
		for n := node.Next; n != nil; n = n.Next {
			args = append(args, n.Value)
		}
		if kind == KindFrom {
			if len(args) == 0 {
				return nil, errors.Wrapf(types.ErrBadDockerfile, "line %d: FROM needs an image", node.StartLine)
			}
			stage := Stage{Index: len(d.Stages), From: args[0]}
			if len(args) == 3 && strings.EqualFold(args[1], "as") {
				stage.Name = strings.ToLower(args[2])
			}
			d.Stages = append(d.Stages, stage)
			continue
		}
		if len(d.Stages) == 0 {
			// ARG before the first FROM
			continue
		}
		ins := Instruction{Kind: kind, Original: node.Original, JSON: node.Attributes["json"]}
		switch kind {
		case KindCopy, KindAdd:
			if len(args) < 2 {
				return nil, errors.Wrapf(types.ErrBadDockerfile, "line %d: %s needs a source and a destination", node.StartLine, kind)
			}
			ins.Sources = args[:len(args)-1]
			ins.Dest = args[len(args)-1]
			for _, flag := range node.Flags {
				if v, ok := strings.CutPrefix(flag, "--from="); ok {
					ins.From = strings.ToLower(v)
				}
			}
		case KindRun:
			ins.Command = args
		case KindWorkdir:
			if len(args) > 0 {
				ins.Dest = args[0]
			}
		case KindEnv:
			ins.Env = map[string]string{}
			for i := 0; i+1 < len(args); i += 2 {
				ins.Env[args[i]] = args[i+1]
			}
		}
		last := &d.Stages[len(d.Stages)-1]
		last.Instructions = append(last.Instructions, ins)
	}
	if len(d.Stages) == 0 {
		return nil, errors.Wrap(types.ErrBadDockerfile, "no FROM instruction")
	}
	return d, nil
}

// StageIndex resolves a --from reference, -1 for external images
func (d *Dockerfile) StageIndex(ref string) int {
	for _, s := range d.Stages {
		if s.Name != "" && s.Name == ref {
			return s.Index
		}
	}
	if i, err := strconv.Atoi(ref); err == nil && i >= 0 && i < len(d.Stages) {
		return i
	}
	return -1
}

// Needed returns the stages the last stage depends on, the last included, in order
func (d *Dockerfile) Needed() []int {
	needed := map[int]bool{}
	var visit func(i int)
	visit = func(i int) {
		if needed[i] {
			return
		}
		needed[i] = true
		stage := d.Stages[i]
		if j := d.StageIndex(strings.ToLower(stage.From)); j >= 0 && j < i {
			visit(j)
		}
		for _, ins := range stage.Instructions {
			if ins.From == "" {
				continue
			}
			if j := d.StageIndex(ins.From); j >= 0 && j < i {
				visit(j)
			}
		}
	}
	visit(len(d.Stages) - 1)
	r := []int{}
	for i := range d.Stages {
		if needed[i] {
			r = append(r, i)
		}
	}
	return r
}
