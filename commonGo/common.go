package commonGo

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/multiversx/mx-chain-logger-go/file"
)

// ArgsFileLogger holds the arguments needed to attach a file logger
type ArgsFileLogger struct {
	DefaultLogsPath string
	LogFilePrefix   string
	WorkingDir      string
	SaveLogFile     bool
	LifeSpan        time.Duration
	LifeSpanInMB    uint64
}

// AttachFileLogger attaches, if required, a log file. The returned handler is nil when SaveLogFile is not set.
func AttachFileLogger(log logger.Logger, args ArgsFileLogger) (FileLoggingHandler, error) {
	err := logger.SetDisplayByteSlice(logger.ToHex)
	log.LogIfError(err)

	if !args.SaveLogFile {
		return nil, nil
	}

	argsFileLogging := file.ArgsFileLogging{
		WorkingDir:      args.WorkingDir,
		DefaultLogsPath: args.DefaultLogsPath,
		LogFilePrefix:   args.LogFilePrefix,
	}
	logFile, err := file.NewFileLogging(argsFileLogging)
	if err != nil {
		return nil, fmt.Errorf("%w creating a log file", err)
	}

	if args.LifeSpan > 0 || args.LifeSpanInMB > 0 {
		err = logFile.ChangeFileLifeSpan(args.LifeSpan, args.LifeSpanInMB)
		if err != nil {
			_ = logFile.Close()
			return nil, fmt.Errorf("%w while setting the log file life span", err)
		}
	}

	return logFile, nil
}

// ReadEnvFile will read the file contents in the provided map. Keys with a non-empty value in the map are
// treated as optional and keep that value when the environment does not define them.
func ReadEnvFile(envFile string, m map[string]string) error {
	err := godotenv.Load(envFile)
	if err != nil {
		return fmt.Errorf("%w while loading %s", err, envFile)
	}

	for k, defaultValue := range m {
		val := os.Getenv(k)
		if len(val) > 0 {
			m[k] = val
			continue
		}
		if len(defaultValue) == 0 {
			return fmt.Errorf("%s is not set in the .env file", k)
		}
	}

	return nil
}
