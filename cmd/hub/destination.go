package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"autorunner/internal/model"
)

func runHub(args []string) int {
	if len(args) == 0 {
		return usageErr("usage: hub {destination|repo|janitor} ...")
	}
	switch args[0] {
	case "destination":
		return runHubDestination(args[1:])
	case "repo":
		return runHubRepo(args[1:])
	case "janitor":
		return runHubJanitor(args[1:])
	default:
		return usageErr("unknown hub subcommand %q", args[0])
	}
}

func runHubDestination(args []string) int {
	if len(args) == 0 {
		return usageErr("usage: hub destination {show|set} <repo_id> {local|docker ...}")
	}
	switch args[0] {
	case "show":
		return hubDestinationShow(args[1:])
	case "set":
		return hubDestinationSet(args[1:])
	default:
		return usageErr("unknown hub destination subcommand %q", args[0])
	}
}

func hubDestinationShow(args []string) int {
	fs := flag.NewFlagSet("hub destination show", flag.ContinueOnError)
	hubRoot := fs.String("hub", "", "hub root directory")
	asJSON := fs.Bool("json", false, "emit JSON")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	repoArgs := fs.Args()
	if len(repoArgs) != 1 {
		return usageErr("usage: hub destination show --hub <path> <repo_id>")
	}
	repoID := repoArgs[0]

	store, err := openHubStore(*hubRoot)
	if err != nil {
		return usageErr("%v", err)
	}
	dest, err := store.ResolveDestination(repoID)
	if err != nil {
		return fail("resolve destination: %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(dest); err != nil {
			return fail("encode destination: %v", err)
		}
		return exitOK
	}
	fmt.Printf("kind=%s", dest.Kind)
	if dest.Kind == model.DestinationDocker {
		fmt.Printf(" image=%s container=%s workdir=%s", dest.Image, dest.ContainerName, dest.Workdir)
	}
	fmt.Println()
	return exitOK
}

func hubDestinationSet(args []string) int {
	fs := flag.NewFlagSet("hub destination set", flag.ContinueOnError)
	hubRoot := fs.String("hub", "", "hub root directory")
	image := fs.String("image", "", "docker: container image")
	containerName := fs.String("container-name", "", "docker: managed container name")
	profile := fs.String("profile", "", "docker: preflight binary profile name")
	workdir := fs.String("workdir", "", "docker: container working directory")
	envFlag := fs.String("env", "", "docker: comma-separated KEY=VALUE pairs")
	envPassthrough := fs.String("env-passthrough", "", "docker: comma-separated host env var names")
	mountFlag := fs.String("mount", "", "docker: comma-separated source:target[:ro] specs")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	rest := fs.Args()
	if len(rest) != 2 {
		return usageErr("usage: hub destination set --hub <path> <repo_id> {local|docker}")
	}
	repoID, kind := rest[0], rest[1]

	var dest model.Destination
	switch model.DestinationKind(kind) {
	case model.DestinationLocal:
		dest = model.Destination{Kind: model.DestinationLocal}
	case model.DestinationDocker:
		if *image == "" {
			return usageErr("--image is required for docker destinations")
		}
		mounts, uerr := parseMounts(*mountFlag)
		if uerr != "" {
			return usageErr("%s", uerr)
		}
		dest = model.Destination{
			Kind:           model.DestinationDocker,
			Image:          *image,
			ContainerName:  *containerName,
			Profile:        *profile,
			Workdir:        *workdir,
			Env:            parseEnv(*envFlag),
			EnvPassthrough: splitNonEmpty(*envPassthrough),
			Mounts:         mounts,
		}
	default:
		return usageErr("destination kind must be local or docker, got %q", kind)
	}

	store, err := openHubStore(*hubRoot)
	if err != nil {
		return usageErr("%v", err)
	}
	if err := store.RepoSetDestination(repoID, &dest); err != nil {
		return fail("set destination: %v", err)
	}
	return exitOK
}

func splitNonEmpty(csv string) []string {
	if csv == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseEnv(csv string) map[string]string {
	parts := splitNonEmpty(csv)
	if len(parts) == 0 {
		return nil
	}
	out := make(map[string]string, len(parts))
	for _, part := range parts {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}

func parseMounts(csv string) ([]model.Mount, string) {
	parts := splitNonEmpty(csv)
	if len(parts) == 0 {
		return nil, ""
	}
	mounts := make([]model.Mount, 0, len(parts))
	for _, part := range parts {
		fields := strings.Split(part, ":")
		if len(fields) < 2 {
			return nil, fmt.Sprintf("invalid --mount spec %q, want source:target[:ro]", part)
		}
		m := model.Mount{Source: fields[0], Target: fields[1]}
		if len(fields) == 3 && fields[2] == "ro" {
			m.ReadOnly = true
		}
		mounts = append(mounts, m)
	}
	return mounts, ""
}
