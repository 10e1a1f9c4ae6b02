package utils

import "time"

const (
	DefaultBufferSize      = 256 * 1024
	DefaultPoolSize        = 100
	DefaultTimeout         = 5 * time.Minute
	DefaultConnectTimeout  = 30 * time.Second
	DefaultKATimeout       = 90 * time.Second
	DefaultOutputName      = "file.bin"
	LogFile                = ".splitdl.log"
	ResumeMetaSuffix       = ".part.meta"
	maxRedirects           = 10
	highThreadSocketBuffer = 1024 * 1024
)

var Version = "dev"

var ToolUserAgent = "splitdl/" + Version

// Local-only User-Agent list
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:135.0) Gecko/20100101 Firefox/135.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:135.0) Gecko/20100101 Firefox/135.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.3 Safari/605.1.15",
	"curl/7.88.1",
	"Wget/1.21.4",
}
