// Package main implements the diffflow demo binary, which maintains a
// closure-under-doubling fixpoint incrementally: starting from a seed
// set of integers, the dataflow keeps doubling every member and keeps
// the results under a limit, until no new member appears.
//
// The demo is a worked example of the engine's iteration support:
//   - A seed input feeds the starting integers
//   - An Iterate body doubles every reached value, merges it with the
//     loop input, and filters to the limit, one round per iteration
//   - Distinct and Consolidate keep the circulating differences minimal
//   - Output logs each change batch as it is sealed
//
// Architecture:
//
//	┌──────────────────────────────────────────────┐
//	│                dataflow-demo                 │
//	├──────────────────────────────────────────────┤
//	│  seed input ──▶ iterate ┌──────────────────┐ │
//	│                         │ map (x → 2x)     │ │
//	│                         │ concat (self)    │ │
//	│                         │ filter (≤ limit) │ │
//	│                         │ distinct         │ │
//	│                         │ consolidate      │ │
//	│                         └──────────────────┘ │
//	│                      ──▶ output (logger)     │
//	├──────────────────────────────────────────────┤
//	│  Driving: SendData / SendFrontier / Run      │
//	└──────────────────────────────────────────────┘
//
// Configuration:
//   - -seed: the starting integer (default: 1)
//   - -limit: the inclusive upper bound (default: 50)
//   - -verbose: enable debug logging of every message
//
// Example usage:
//
//	# Compute {1,2,4,8,16,32}
//	./dataflow-demo -seed 1 -limit 50
//
//	# Watch every message move through the graph
//	./dataflow-demo -seed 1 -limit 50 -verbose
package main

import (
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/diffflow/internal/graph"
	"github.com/dreamware/diffflow/internal/multiset"
)

// logFatal is a variable to allow mocking logrus.Fatalf in tests.
var logFatal = logrus.Fatalf

// node keys an integer by itself so the distinct operator can
// deduplicate rediscovered values; deduplication is what makes the
// fixpoint terminate.
type node = multiset.KV[int, int]

// closure builds the dataflow: repeatedly double every reached value,
// keep the results at or under limit, and stop when nothing new
// appears.
func closure(
	seed *graph.Input[node],
	limit int,
	report func(msg graph.Message[node]),
) {
	result := graph.Iterate(&seed.Stream, func(reached *graph.Stream[node]) *graph.Stream[node] {
		doubled := graph.Map(reached, func(kv node) node {
			return node{Key: kv.Key * 2, Value: kv.Value * 2}
		})
		merged := reached.Concat(doubled).Filter(func(kv node) bool {
			return kv.Key <= limit
		})
		return graph.Distinct(merged).Consolidate()
	})
	result.Output(report)
}

func main() {
	seedValue := flag.Int("seed", 1, "starting integer")
	limit := flag.Int("limit", 50, "inclusive upper bound")
	verbose := flag.Bool("verbose", false, "enable debug logging of every message")
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	g, err := graph.New(0, graph.WithLogger(log))
	if err != nil {
		logFatal("create graph: %v", err)
	}

	seed := graph.NewInput[node](g)
	closure(seed, *limit, func(msg graph.Message[node]) {
		if msg.Type != graph.MessageData {
			return
		}
		for _, e := range msg.Data.Collection.Entries() {
			log.WithFields(logrus.Fields{
				"version": msg.Data.Version.String(),
				"value":   e.Record.Key,
				"mult":    e.Mult,
			}).Info("closure change")
		}
	})

	if err := g.Finalize(); err != nil {
		logFatal("finalize graph: %v", err)
	}

	if err := seed.SendData(0, []multiset.Entry[node]{
		{Record: node{Key: *seedValue, Value: *seedValue}, Mult: 1},
	}); err != nil {
		logFatal("send seed: %v", err)
	}
	if err := seed.SendFrontier(1); err != nil {
		logFatal("advance seed frontier: %v", err)
	}

	if err := g.Run(); err != nil {
		logFatal("run graph: %v", err)
	}
	log.Info("fixpoint reached")
}
