// Package rpc runs conversions on another machine. The native plugin modules
// only exist for some platforms, so a song can be sent to a Converter running
// where the modules are and the results received back.
package rpc

import (
	"errors"
	"fmt"
	"net"
	"net/rpc"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/ftag"

	"github.com/wavesabre/sabre"
	"github.com/wavesabre/sabre/convert"
)

type (
	// Request is a song to convert. Options are applied on top of the
	// options of the server, except PluginDir, which is always the server's.
	Request struct {
		Song    sabre.Song
		Options convert.Options
	}

	// Reply carries the result of a conversion. Failures are reported in Err
	// and Kind instead of the rpc error, so the tag survives the trip.
	Reply struct {
		Song        []byte
		Sources     map[string]string
		Diagnostics []sabre.Diagnostic
		Err         string
		Kind        ftag.Kind
	}

	// Converter is the service registered on the server.
	Converter struct {
		opts convert.Options
		log  sabre.Logger
	}

	// Client is a connection to a Converter.
	Client struct {
		client *rpc.Client
	}
)

const serviceName = "Converter"

// DefaultPort is the port the converter service listens on by default.
const DefaultPort = "31337"

func (c *Converter) Convert(req Request, reply *Reply) error {
	opts := req.Options
	opts.PluginDir = c.opts.PluginDir
	if opts.Oracle == "" {
		opts.Oracle = c.opts.Oracle
	}
	if opts.Workers == 0 {
		opts.Workers = c.opts.Workers
	}
	diag := &sabre.DiagnosticLog{Next: c.log}
	res, err := convert.Convert(&req.Song, opts, diag)
	reply.Diagnostics = diag.Entries()
	if err != nil {
		reply.Err = err.Error()
		reply.Kind = ftag.Get(err)
		return nil
	}
	reply.Song = res.Bytes()
	reply.Sources = res.Sources
	return nil
}

// Serve accepts connections on l and serves conversions with the given base
// options until l is closed.
func Serve(l net.Listener, opts convert.Options, log sabre.Logger) error {
	server := rpc.NewServer()
	if err := server.RegisterName(serviceName, &Converter{opts: opts, log: log}); err != nil {
		return fmt.Errorf("registering converter failed: %w", err)
	}
	server.Accept(l)
	return nil
}

// Dial connects to a Converter at address, which is host:port.
func Dial(address string) (*Client, error) {
	client, err := rpc.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("rpc.Dial failed: %w", err)
	}
	return &Client{client: client}, nil
}

// Convert converts the song remotely. The diagnostics of the server are
// replayed to log.
func (c *Client) Convert(song *sabre.Song, opts convert.Options, log sabre.Logger) (*Reply, error) {
	var reply Reply
	if err := c.client.Call(serviceName+".Convert", Request{Song: *song, Options: opts}, &reply); err != nil {
		return nil, fault.Wrap(err, ftag.With(ftag.Internal))
	}
	for _, d := range reply.Diagnostics {
		switch d.Severity {
		case sabre.Warning:
			log.Warnf("%v", d.Message)
		default:
			log.Infof("%v", d.Message)
		}
	}
	if reply.Err != "" {
		kind := reply.Kind
		if kind == "" {
			kind = ftag.Internal
		}
		return nil, fault.Wrap(errors.New(reply.Err), ftag.With(kind))
	}
	return &reply, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
