/*
Package poolserver is a small concurrent TCP server built around a fixed-size
worker pool.

The listener accepts connections and submits each one to the pool as a job.
A worker reads up to 1 KiB from the connection, matches the bytes against a
static route table by request-line prefix, and writes back a canned response:

	HTTP/1.1 200 OK\r\nContent-Length: <n>\r\n\r\n<contents of hello.html>
	HTTP/1.1 404 NOT FOUND\r\nContent-Length: <n>\r\n\r\n<contents of 404.html>

The route table is frozen when the server starts and shared by every worker
without locking. Shutdown closes the job queue first, lets the workers drain
what was already queued, then joins them in order.

Quick Start

	package main

	import (
	    "github.com/searchktools/pool-server/app"
	    "github.com/searchktools/pool-server/config"
	)

	func main() {
	    application, err := app.New(config.New())
	    if err != nil {
	        panic(err)
	    }

	    engine := application.Engine()
	    engine.GET("hello")
	    engine.GET("")
	    engine.POST("post")

	    application.Run()
	}

Modules

  - app: wiring and signal-driven graceful shutdown
  - config: flags, POOLSERVER_* environment, JSON file
  - core: engine, listener loop, per-connection dispatcher
  - core/pools: job queue, workers, worker pool, read buffers
  - core/router: route table and compiled snapshots
  - core/static: response body files
  - core/failure: error kinds
  - core/observability: logging, Prometheus metrics, per-route monitor
  - core/admin: /metrics, /stats and /healthz over HTTP/1.1 and h2c
  - core/codec: JSON and protobuf stats encoding
  - core/optimize: CPU-gated prefix comparison
*/
package poolserver
