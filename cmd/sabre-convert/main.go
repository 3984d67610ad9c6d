package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"gopkg.in/yaml.v3"

	"github.com/wavesabre/sabre/cmd"
	"github.com/wavesabre/sabre/codec"
	"github.com/wavesabre/sabre/convert"
	"github.com/wavesabre/sabre/midifile"
	"github.com/wavesabre/sabre/rpc"
	"github.com/wavesabre/sabre/version"
)

func filterExtensions(input map[string][]byte, extensions []string) map[string][]byte {
	ret := map[string][]byte{}
	for _, ext := range extensions {
		extWithDot := "." + strings.TrimPrefix(ext, ".")
		if inputVal, ok := input[extWithDot]; ok {
			ret[extWithDot] = inputVal
		}
	}
	return ret
}

// exitCode maps the tag of a conversion error to the exit status.
func exitCode(err error) int {
	switch ftag.Get(err) {
	case ftag.InvalidArgument:
		return 2
	case ftag.NotFound:
		return 3
	}
	return 1
}

func main() {
	safe := flag.Bool("n", false, "Never overwrite files; if file already exists and would be overwritten, give an error.")
	list := flag.Bool("l", false, "Do not write files; just list files that would change instead.")
	stdout := flag.Bool("s", false, "Do not write files; write to standard output instead.")
	help := flag.Bool("h", false, "Show help.")
	jsonOut := flag.Bool("j", false, "Output the parsed song as .json file instead of converting.")
	yamlOut := flag.Bool("y", false, "Output the parsed song as .yml file instead of converting.")
	source := flag.Bool("cpp", false, "Also render the song as C++ source (.cpp and .h files).")
	tmplDir := flag.String("t", "", "When rendering source, use the templates in this directory instead of the standard templates.")
	outPath := flag.String("o", "", "Directory or filename where to write the output. Extension is ignored. Directory and its parents are created if needed. By default, everything is placed in the current directory.")
	extensionsOut := flag.String("e", "", "Output only the files with these comma separated extensions. For example: bin,h")
	optionsPath := flag.String("c", "", "Read conversion options from this .yml file. Flags given explicitly override it.")
	pluginDir := flag.String("p", "", "Directory to search for the native plugin modules used to minify device chunks.")
	oracle := flag.String("oracle", "", "Compression oracle used to order devices: native, lzma, lzcost or none.")
	workers := flag.Int("workers", 0, "Number of device orderings evaluated concurrently.")
	tsScale := flag.Int("ts", -1, "Timestamp scale exponent. Negative means use the value in the song.")
	durScale := flag.Int("ds", -1, "Note duration scale exponent. Negative means use the value in the song.")
	sampleRate := flag.Int("rate", midifile.DefaultSampleRate, "Sample rate used when converting .mid files.")
	stats := flag.Bool("stats", false, "Print the raw and estimated compressed sizes of the parts of the song.")
	dump := flag.Bool("d", false, "Decode the given song streams and print them as .yml instead of converting.")
	remote := flag.String("remote", "", "Convert on the converter service at this host:port instead of locally; the plugin directory of the service is used.")
	versionFlag := flag.Bool("v", false, "Print version.")
	logLevel := cmd.LogLevelFlag()
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if flag.NArg() == 0 || *help {
		flag.Usage()
		os.Exit(0)
	}
	logger, err := cmd.NewLogger(os.Stderr, *logLevel, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -loglevel: %v\n", err)
		os.Exit(2)
	}
	var opts convert.Options
	if *optionsPath != "" {
		if opts, err = convert.LoadOptionsFile(*optionsPath); err != nil {
			logger.Error("could not load options", "err", err)
			os.Exit(exitCode(err))
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "p":
			opts.PluginDir = *pluginDir
		case "oracle":
			opts.Oracle = *oracle
		case "workers":
			opts.Workers = *workers
		case "t":
			opts.Templates = *tmplDir
		case "cpp":
			opts.Source = *source
		}
	})
	if *tsScale >= 0 {
		opts.TimestampScaleLog2 = tsScale
	}
	if *durScale >= 0 {
		opts.NoteDurationScaleLog2 = durScale
	}
	var client *rpc.Client
	if *remote != "" {
		if client, err = rpc.Dial(*remote); err != nil {
			logger.Error("could not connect to the converter service", "err", err)
			os.Exit(1)
		}
	}
	output := func(filename string, extension string, contents []byte) error {
		if *stdout {
			os.Stdout.Write(contents)
			return nil
		}
		_, name := filepath.Split(filename)
		var dir string
		if *outPath != "" {
			// check if it's an already existing directory and the user just forgot trailing slash
			if info, err := os.Stat(*outPath); err == nil && info.IsDir() {
				dir = *outPath
			} else {
				outdir, outname := filepath.Split(*outPath)
				if outdir != "" {
					dir = outdir
				}
				if outname != "" {
					name = outname
				}
			}
		}
		if dir == "" {
			var err error
			dir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("could not get working directory, specify the output directory explicitly: %v", err)
			}
		}
		name = strings.TrimSuffix(name, filepath.Ext(name)) + extension
		f := filepath.Join(dir, name)
		original, err := os.ReadFile(f)
		if err == nil {
			if bytes.Equal(original, contents) {
				return nil // no need to update
			}
			if !*list && *safe {
				return fmt.Errorf("file %v would be overwritten by converter", f)
			}
		}
		if *list {
			fmt.Println(f)
			return nil
		}
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("could not create output directory %v: %v", dir, err)
		}
		if err := os.WriteFile(f, contents, 0644); err != nil {
			return fmt.Errorf("could not write file %v: %v", f, err)
		}
		return nil
	}
	decode := func(filename string) error {
		b, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("could not read file %v: %w", filename, err)
		}
		decoded, err := codec.Decode(b)
		if err != nil {
			return fault.Wrap(err, fmsg.With("could not decode "+filename), ftag.With(ftag.InvalidArgument))
		}
		out, err := yaml.Marshal(decoded)
		if err != nil {
			return err
		}
		os.Stdout.Write(out)
		return nil
	}
	process := func(filename string) error {
		song, err := cmd.ReadSong(filename, midifile.Options{SampleRate: *sampleRate})
		if err != nil {
			return fault.Wrap(err, ftag.With(ftag.InvalidArgument))
		}
		if *jsonOut || *yamlOut {
			if *jsonOut {
				jsonSong, err := json.Marshal(song)
				if err != nil {
					return fmt.Errorf("could not marshal the song as json file: %v", err)
				}
				if err := output(filename, ".json", jsonSong); err != nil {
					return fmt.Errorf("error outputting json file: %v", err)
				}
			}
			if *yamlOut {
				yamlSong, err := yaml.Marshal(song)
				if err != nil {
					return fmt.Errorf("could not marshal the song as yaml file: %v", err)
				}
				if err := output(filename, ".yml", yamlSong); err != nil {
					return fmt.Errorf("error outputting yaml file: %v", err)
				}
			}
			return nil
		}
		songLog := logger.WithPrefix(filepath.Base(filename))
		var res *convert.Result
		files := map[string][]byte{}
		if client != nil {
			reply, err := client.Convert(song, opts, songLog)
			if err != nil {
				return err
			}
			files[".bin"] = reply.Song
			for ext, code := range reply.Sources {
				files[ext] = []byte(code)
			}
		} else {
			if res, err = convert.Convert(song, opts, songLog); err != nil {
				return err
			}
			files[".bin"] = res.Bytes()
			for ext, code := range res.Sources {
				files[ext] = []byte(code)
			}
		}
		if len(*extensionsOut) > 0 {
			files = filterExtensions(files, strings.Split(*extensionsOut, ","))
		}
		for extension, contents := range files {
			if err := output(filename, extension, contents); err != nil {
				return fmt.Errorf("error outputting %v file: %v", extension, err)
			}
		}
		if *stats && res == nil {
			songLog.Warn("size statistics are only available for local conversions")
		} else if *stats {
			sizes, err := res.Sizes(nil)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintf(w, "%v\traw\tcompressed\t\n", filename)
			for _, s := range sizes {
				fmt.Fprintf(w, "%v\t%v\t%v\t\n", s.Name, s.Raw, s.Compressed)
			}
			w.Flush()
		}
		return nil
	}
	if *dump {
		process = decode
	}
	retval := 0
	fail := func(file string, err error) {
		logger.Error("could not process file", "file", file, "err", err)
		if code := exitCode(err); code > retval {
			retval = code
		}
	}
	for _, param := range flag.Args() {
		if info, err := os.Stat(param); err == nil && info.IsDir() {
			entries, err := os.ReadDir(param)
			if err != nil {
				fail(param, err)
				continue
			}
			for _, e := range entries {
				file := filepath.Join(param, e.Name())
				if e.IsDir() || (*dump && filepath.Ext(file) != ".bin") || (!*dump && !cmd.IsSongFile(file)) {
					continue
				}
				if err := process(file); err != nil {
					fail(file, err)
				}
			}
		} else if err := process(param); err != nil {
			fail(param, err)
		}
	}
	if client != nil {
		client.Close()
	}
	os.Exit(retval)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "WaveSabre song converter. Input .yml, .json or .mid songs, outputs the song stream (.bin) and optionally C++ source (.cpp and .h files).\nUsage: %s [flags] [path ...]\n", os.Args[0])
	flag.PrintDefaults()
}
