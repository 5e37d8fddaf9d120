package hooklib_test

import (
	"fmt"

	"github.com/ListenOcean/hookinjector/hooklib"
)

// load is what the rewriter produces for a function under a memory log and
// a profiler rule.
func load() []int {
	hooklib.ProfilerBegin("example.com/app.load")
	defer hooklib.ProfilerEnd()
	{
		hooklib.MemoryLogBegin("example.com/app.load")
		defer hooklib.MemoryLogEnd("example.com/app.load")
		{
			return make([]int, 1024)
		}
	}
}

func Example() {
	prev := hooklib.Attach(hooklib.FuncSink(func(e hooklib.Event) {
		fmt.Println(e.Kind, e.Name, e.Depth)
	}))
	defer hooklib.Attach(prev)

	load()
	// Output:
	// memory example.com/app.load 0
	// profiler example.com/app.load 0
}
