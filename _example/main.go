package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ouroheap/ouro"
	"github.com/ouroheap/ouro/dump"
)

type record struct {
	id   int
	prev ouro.Cell[*record]
	next ouro.Cell[*record]
}

func (r *record) Trace(t *ouro.Tracer) {
	r.prev.Trace(t)
	r.next.Trace(t)
}

func main() {
	size := 100000

	metrics := &ouro.BasicMetricsCollector{}
	heap, err := ouro.New(
		ouro.WithInitialCapacity(size),
		ouro.WithMetricsCollector(metrics),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer heap.Close()

	fmt.Println("--- Build ---")
	fmt.Println("Nodes:", size)

	start := time.Now()

	head := buildRing(heap, size)

	fmt.Printf("Seconds: %.2f\n\n", time.Since(start).Seconds())

	fmt.Println("--- Dump ---")

	snap := heap.Snapshot()

	dir, err := os.MkdirTemp("", "ouro-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	ctx := context.Background()
	store := dump.NewDirStore(dir)

	if err := dump.WriteTo(ctx, store, "ring.dump", snap); err != nil {
		log.Fatal(err)
	}

	info, err := os.Stat(filepath.Join(dir, "ring.dump"))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Objects:", len(snap.Objects))
	fmt.Println("Bytes:", info.Size())
	fmt.Println()

	fmt.Println("--- Drop ---")

	// The ring keeps itself alive through its prev/next cells; dropping the
	// last external handle reclaims nothing on its own.
	head.Drop()

	fmt.Println("Live after drop:", heap.Stats().Live)
	fmt.Println()

	fmt.Println("--- Collect ---")

	start = time.Now()

	report := heap.Collect()

	end := time.Since(start)

	fmt.Println("Traced:", report.Traced)
	fmt.Println("Held:", report.Held)
	fmt.Println("Dropped:", report.Dropped)
	fmt.Println("Live:", heap.Stats().Live)
	fmt.Printf("Seconds: %.4f\n\n", end.Seconds())

	fmt.Println("--- Metrics ---")

	ms := metrics.GetStats()
	fmt.Println("Allocs:", ms.AllocCount)
	fmt.Println("Frees:", ms.FreeCount)
	fmt.Println("Passes:", ms.CollectCount)
	fmt.Println("Pass dropped:", ms.CollectDropped)
}

// buildRing links size records into a doubly linked ring and returns the only
// external handle. Every node sits on a cycle, so reference counting alone
// can never free the ring.
func buildRing(heap *ouro.Heap, size int) ouro.Handle[*record] {
	head, err := ouro.Alloc(heap, &record{id: 0})
	if err != nil {
		log.Fatal(err)
	}

	prev := head
	for i := 1; i < size; i++ {
		node, err := ouro.Alloc(heap, &record{id: i})
		if err != nil {
			log.Fatal(err)
		}
		node.Value().prev.Set(prev.Clone())
		prev.Value().next.Set(node)
		prev = node
	}

	prev.Value().next.Set(head.Clone())
	head.Value().prev.Set(prev.Clone())

	return head
}
