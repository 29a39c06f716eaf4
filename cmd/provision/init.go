package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/autom8ter/provision/errors"
	"github.com/spf13/cobra"
)

var ensureTemplate = `url: {{ .url }}
name: {{ .name }}
options:
  - type: user
    username: {{ .user }}
    password: {{ randAlphaNum 24 | quote }}
  - type: documentcollection
    name: places
    options:
      waitForSync: true
      schema:
        rule:
          type: object
          required: [name]
        level: moderate
        message: places need a name
  - type: edgecollection
    name: routes
  - type: geoindex
    on: places
    fields: [latitude, longitude]
  - type: delimiteranalyzer
    name: tags
    delimiter: ","
  - type: searchview
    name: {{ .name }}_view
    options:
      links:
        places:
          fields:
            tags:
              analyzers: [tags]
`

var migrationsTemplate = `- type: database
  databaseName: {{ .name }}
  users:
    - username: {{ .user }}
      passwd: {{ randAlphaNum 24 | quote }}
- type: documentcollection
  databaseName: {{ .name }}
  name: places
- type: edgecollection
  databaseName: {{ .name }}
  name: routes
- type: geoindex
  databaseName: {{ .name }}
  collection: places
  options:
    fields: [location]
    geoJson: true
- type: delimiteranalyzer
  databaseName: {{ .name }}
  name: tags
  delimiter: ";"
- type: searchview
  databaseName: {{ .name }}
  name: {{ .name }}_view
  options:
    links:
      places:
        includeAllFields: true
`

func initCmd() *cobra.Command {
	var (
		projectPath string
		name        string
		user        string
		url         string
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "write sample ensure and migrate documents",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := os.MkdirAll(projectPath, 0755); err != nil {
				return errors.Wrap(err, errors.Internal, "failed to create %s", projectPath)
			}
			data := map[string]any{
				"name": name,
				"user": user,
				"url":  url,
			}
			for file, content := range map[string]string{
				"ensure.yaml":     ensureTemplate,
				"migrations.yaml": migrationsTemplate,
			} {
				if err := render(filepath.Join(projectPath, file), content, data); err != nil {
					return err
				}
			}
			fmt.Printf("sample descriptors created: %v\n", projectPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&projectPath, "path", "p", ".", "directory to write to")
	cmd.Flags().StringVarP(&name, "name", "n", "places", "database name")
	cmd.Flags().StringVarP(&user, "user", "u", "app", "database user")
	cmd.Flags().StringVar(&url, "server", "http://localhost:8529", "server url written into ensure.yaml")
	return cmd
}

func render(path, content string, data map[string]any) error {
	tmpl, err := template.New(filepath.Base(path)).Funcs(sprig.TxtFuncMap()).Parse(content)
	if err != nil {
		return errors.Wrap(err, errors.Internal, "failed to parse template")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.Internal, "failed to create %s", path)
	}
	defer f.Close()
	return errors.Wrap(tmpl.Execute(f, data), errors.Internal, "failed to render %s", path)
}
