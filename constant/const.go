package constant

import (
	_ "embed"
	"fmt"
	"strings"
	"time"
)

const UserAgent = "ymdl"

var (
	//go:embed version
	Version     string
	compileTime string // set with -ldflags "-X github.com/xeptore/ymdl/constant.compileTime=..."
	CompileTime time.Time
)

func init() {
	Version = strings.TrimSpace(Version)
	if compileTime == "" {
		CompileTime = time.Now().UTC().Truncate(time.Second)
		return
	}
	t, err := time.Parse(time.RFC3339, compileTime)
	if nil != err {
		panic(fmt.Errorf("could not parse CompileTime constant %q. Make sure it is set at build time in RFC3339 format", compileTime))
	}
	CompileTime = t
}
