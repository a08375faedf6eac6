package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared structured logger used across the service.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// LogEvent emits one structured JSON log line. A timestamp is added when
// the entry does not carry one.
func LogEvent(entry map[string]any) {
	if _, ok := entry["ts"]; !ok {
		withTS := make(map[string]any, len(entry)+1)
		for k, v := range entry {
			withTS[k] = v
		}
		withTS["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
		entry = withTS
	}
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(data))
}
