package crash

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"bansync/internal/logger"
)

// RecoverWithStack logs a recovered panic with its stack. Call it deferred.
func RecoverWithStack(moduleName string) {
	if r := recover(); r != nil {
		report(moduleName, "PANIC", r)
	}
}

// RecoverWithStackAndExit is the main goroutine variant: it logs and exits 1.
func RecoverWithStackAndExit(moduleName string) {
	if r := recover(); r != nil {
		report(moduleName, "FATAL PANIC", r)

		// let the rotating file flush
		time.Sleep(1 * time.Second)
		os.Exit(1)
	}
}

// SafeGoroutine starts fn in a goroutine that survives panics.
func SafeGoroutine(name string, fn func()) {
	go func() {
		defer RecoverWithStack(fmt.Sprintf("goroutine-%s", name))
		fn()
	}()
}

func report(moduleName, kind string, r interface{}) {
	stack := debug.Stack()

	logger.Errorf("%s in %s: %v", kind, moduleName, r)
	logger.Errorf("Stack trace:\n%s", string(stack))

	// stderr too, so container logs show it even if the file writer is broken
	fmt.Fprintf(os.Stderr, "[%s] %s - %s: %v\n", kind, time.Now().Format("2006-01-02 15:04:05"), moduleName, r)
	fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", string(stack))

	logRuntimeInfo()
}

func logRuntimeInfo() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	info := fmt.Sprintf("Runtime: go=%s cpus=%d goroutines=%d heap_alloc=%dKB heap_inuse=%dKB num_gc=%d",
		runtime.Version(),
		runtime.NumCPU(),
		runtime.NumGoroutine(),
		m.HeapAlloc/1024,
		m.HeapInuse/1024,
		m.NumGC,
	)

	logger.Error(info)
}
