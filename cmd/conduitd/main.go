// Command conduitd is a minimal demonstration listener built on the conduit
// engine: accept, tune the socket, drive one request/response cycle per
// keep-alive loop, echo the request body back as the response. It exists
// to exercise the engine end to end, not as a production server.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/conduit/bufpool"
	"github.com/yourusername/conduit/conduit"
	"github.com/yourusername/conduit/conduit/conlog"
	"github.com/yourusername/conduit/nettune"
)

var buffers = bufpool.New()

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	lowLatency := flag.Bool("low-latency", false, "apply the low-latency socket tuning preset instead of the default")
	flag.Parse()

	lg := logrus.New()
	lg.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger := conlog.NewLogrus(lg)

	tuneCfg := nettune.DefaultConfig()
	if *lowLatency {
		tuneCfg = nettune.LowLatencyConfig()
	}

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		lg.Fatalf("conduitd: listen %s: %v", *addr, err)
	}
	if err := nettune.ApplyListener(ln, tuneCfg); err != nil {
		lg.Warnf("conduitd: listener tuning: %v", err)
	}
	lg.Infof("conduitd: listening on %s", ln.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	go acceptLoop(ctx, ln, tuneCfg, logger, &wg)

	<-ctx.Done()
	lg.Infof("conduitd: shutting down")

	var shutdownErr *multierror.Error
	if err := ln.Close(); err != nil {
		shutdownErr = multierror.Append(shutdownErr, err)
	}
	wg.Wait()

	if shutdownErr.ErrorOrNil() != nil {
		lg.Fatalf("conduitd: shutdown: %v", shutdownErr)
	}
}

func acceptLoop(ctx context.Context, ln net.Listener, tuneCfg *nettune.Config, logger conlog.Logger, wg *sync.WaitGroup) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("conduitd: accept: %v", err)
			continue
		}
		if err := nettune.Apply(conn, tuneCfg); err != nil {
			logger.Warnf("conduitd: socket tuning: %v", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			serveConn(ctx, conn, logger)
		}()
	}
}

// serveConn drives one connection's request/response cycles until the peer
// closes it, a request wants it closed, or a read or write fails. An
// Upgrade request gets no special handling: it is answered with the same
// echo response as any other request.
func serveConn(ctx context.Context, raw net.Conn, logger conlog.Logger) {
	defer raw.Close()

	ch := conduit.NewNetChannel(raw)
	buf := buffers.Get(bufpool.Size64KB)
	defer buffers.Put(buf)

	c, err := conduit.New(ch, buf, conduit.WithLogger(logger))
	if err != nil {
		logger.Errorf("conduitd: %v", err)
		return
	}
	defer c.Close()

	for {
		var method conduit.MethodID
		var path []byte
		var req conduit.Message

		if err := c.ReadRequest(ctx, &method, &path, &req); err != nil {
			if err != io.EOF {
				logger.Warnf("conduitd: read request: %v", err)
			}
			return
		}

		for {
			if err := c.ReadSomeBody(ctx, &req); err != nil {
				logger.Warnf("conduitd: read body: %v", err)
				return
			}
			if c.IngressState() == conduit.IngressBodyReady {
				break
			}
		}
		var trailers conduit.Message
		_ = c.ReadTrailers(ctx, &trailers)

		var resp conduit.Message
		resp.Headers.Add("content-type", "application/octet-stream")
		resp.Body = req.Body

		if err := c.WriteResponse(ctx, 200, "OK", &resp); err != nil {
			logger.Warnf("conduitd: write response: %v", err)
			return
		}

		if !c.KeepAlive() {
			return
		}
	}
}
