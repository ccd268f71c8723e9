package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Logger struct {
	Level string `yaml:"level"`
}

type Global struct {
	Logger Logger `yaml:"logger"`
}

type GeoServer struct {
	URL       string `yaml:"url"`
	Workspace string `yaml:"workspace"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

type Identifier struct {
	ServiceURL string `yaml:"service_url"`
	Token      string `yaml:"token"`
	ResolveURL string `yaml:"resolve_url"`
}

type Solr struct {
	URL  string `yaml:"url"`
	Core string `yaml:"core"`
}

type Local struct {
	Path      string `yaml:"path"`
	Prefix    string `yaml:"prefix"`
	PublicURL string `yaml:"public_url"`
}

type S3 struct {
	Bucket         string `yaml:"bucket"`
	Region         string `yaml:"region"`
	Prefix         string `yaml:"prefix"`
	Endpoint       string `yaml:"endpoint"`
	PublicURL      string `yaml:"public_url"`
	ForcePathStyle bool   `yaml:"force_path_style"`
}

type Storage struct {
	Type  string `yaml:"type"`
	Local Local  `yaml:"local"`
	S3    S3     `yaml:"s3"`
}

type Catalog struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type Ingest struct {
	WorkDir         string `yaml:"work_dir"`
	Provenance      string `yaml:"provenance"`
	MODSTemplateURL string `yaml:"mods_template_url"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

type Geoporter struct {
	Global     Global     `yaml:"global"`
	Server     Server     `yaml:"server"`
	GeoServer  GeoServer  `yaml:"geoserver"`
	Identifier Identifier `yaml:"identifier"`
	Solr       Solr       `yaml:"solr"`
	Storage    Storage    `yaml:"storage"`
	Catalog    Catalog    `yaml:"catalog"`
	Ingest     Ingest     `yaml:"ingest"`
}

func NewGeoporterFromFile(fpath string) (*Geoporter, error) {
	bs, err := os.ReadFile(fpath)
	if err != nil {
		return nil, err
	}

	var geoporter Geoporter
	if err := yaml.Unmarshal(bs, &geoporter); err != nil {
		return nil, err
	}

	return &geoporter, nil
}
