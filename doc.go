/*
Package tmplserve is an embedded HTTP application server that maps routes
to static files, directories and templates written in a small markup
language, and serves them from a fixed pool of worker slots.

Every slot owns a preallocated arena. A request's parsed strings, its
variables and its scratch allocations come from that arena and are
released wholesale when the next request on the slot begins. When every
slot is busy, new connections are closed immediately.

Quick Start

	package main

	import (
	    "context"
	    "log"

	    "github.com/searchktools/tmplserve/app"
	    "github.com/searchktools/tmplserve/config"
	    "github.com/searchktools/tmplserve/core/router"
	)

	func main() {
	    cfg, err := config.Load(nil)
	    if err != nil {
	        log.Fatal(err)
	    }
	    application := app.New(cfg, router.Hooks{})

	    srv := application.Server()
	    srv.MapFile("/favicon.ico", "static/favicon.ico")
	    srv.MapTemplate("/", "pages/index.tmpl")
	    srv.MapDir("/static", "static")

	    if err := application.Run(context.Background()); err != nil {
	        log.Fatal(err)
	    }
	}

Templates

A template is a sequence of elements, text blocks and directives:

	html {
	    head { title[Hello] link rel="stylesheet" href="/static/site.css"; }
	    body {
	        h1 { read "title", "Untitled"; }
	        p  { param "q"; }
	        call file_tree;
	        include "pages/footer.tmpl";
	    }
	}

Modules

  - app: lifecycle, admin endpoint and HTTP/2 front-end wiring
  - config: configuration from flags, environment and JSON files
  - core: the slot server
  - core/arena: fixed-size bump allocators
  - core/http: request parsing, responses and the request context
  - core/router: the mapping table and dispatch
  - core/template: the template language
  - core/pools: the slot pool and GC tuning
  - core/fscache: file cache invalidated by fsnotify
  - core/filetree: the file_tree stream
  - core/mime: content type detection
  - core/http2: h2c front-end sharing the dispatcher
  - core/codec: JSON and protobuf encodings for /stats
  - core/socket: listener and connection socket options
  - core/observability: Prometheus metrics and the request monitor
*/
package tmplserve
