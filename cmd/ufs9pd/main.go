// Command ufs9pd serves a host directory tree over 9P2000/9P2000.u.
package main

import (
	"fmt"
	"log"
	"net"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/context"

	"aqwari.net/net/ufs9p/internal/tracing"
	"aqwari.net/net/ufs9p/internal/util"
	"aqwari.net/net/ufs9p/styxproto"
	"aqwari.net/net/ufs9p/styxserver"
	"aqwari.net/net/ufs9p/ufs"

	"aqwari.net/retry"
)

var (
	root     string
	addr     string
	readonly bool
	msize    int64
	trace    bool
	debug    bool
)

var rootCmd = &cobra.Command{
	Use:   "ufs9pd",
	Short: "Serve a directory tree over 9P2000/9P2000.u",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&root, "root", ".", "host directory to export")
	flags.StringVar(&addr, "addr", "localhost:5640", "address to listen on")
	flags.BoolVar(&readonly, "readonly", false, "reject any operation with filesystem side effects")
	flags.Int64Var(&msize, "msize", 0, "maximum 9P message size (0 selects the protocol default)")
	flags.BoolVar(&trace, "trace", false, "log every 9P message sent or received")
	flags.BoolVar(&debug, "debug", false, "log backend op errors (failed syscalls, rejected wstats)")
}

// traceMsg logs a single decoded or encoded 9P message, the callback
// internal/tracing invokes for each message crossing a connection
// opened with --trace.
func traceMsg(msg styxproto.Msg) {
	log.Printf("ufs9pd: trace: %s", msg)
}

func run() error {
	cfg := ufs.Config{
		Root:     root,
		ReadOnly: readonly,
	}
	if debug {
		cfg.Logger = log.New(os.Stderr, "ufs9pd: debug: ", log.LstdFlags)
	}
	backend, err := ufs.New(cfg)
	if err != nil {
		return fmt.Errorf("ufs9pd: %w", err)
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("ufs9pd: %w", err)
	}
	defer l.Close()

	log.Printf("ufs9pd: serving %s on %s (readonly=%v trace=%v)", backend, addr, readonly, trace)
	return serve(l, backend)
}

// serve accepts connections and dispatches each to the backend,
// retrying transient Accept errors with the same exponential backoff
// the teacher's own server.serve loop used.
func serve(l net.Listener, backend *ufs.Backend) error {
	backoff := retry.Exponential(time.Millisecond).Max(time.Second)
	try := 0

	for {
		rwc, err := l.Accept()
		if err != nil {
			if util.IsTempErr(err) {
				try++
				wait := backoff(try)
				log.Printf("ufs9pd: accept error: %v; retrying in %v", err, wait)
				time.Sleep(wait)
				continue
			}
			return err
		}
		try = 0
		go serveConn(rwc, backend)
	}
}

func serveConn(rwc net.Conn, backend *ufs.Backend) {
	defer func() {
		if r := recover(); r != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			log.Printf("ufs9pd: panic serving %v: %v\n%s", rwc.RemoteAddr(), r, buf)
		}
	}()
	var c *styxserver.Conn
	if trace {
		c = styxserver.NewTracedConn(rwc, msize, tracing.Func(traceMsg))
	} else {
		c = styxserver.NewConn(rwc, msize)
	}
	session := backend.NewSession()
	if err := styxserver.Serve(c, context.Background(), session); err != nil {
		log.Printf("ufs9pd: %v: %v", rwc.RemoteAddr(), err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
