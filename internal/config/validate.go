package config

import (
	"errors"
	"fmt"
	"strings"
)

var validTransferModes = map[string]struct{}{
	"auto":     {},
	"copy":     {},
	"move":     {},
	"hardlink": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLibrary(); err != nil {
		return err
	}
	if err := c.validateImporter(); err != nil {
		return err
	}
	if err := c.validateClients(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLibrary() error {
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		return errors.New("paths.library_dir must be set")
	}
	if c.Library.MoviesDir == "" {
		return errors.New("library.movies_dir must be set")
	}
	if c.Library.TVDir == "" {
		return errors.New("library.tv_dir must be set")
	}
	return nil
}

func (c *Config) validateImporter() error {
	if _, ok := validTransferModes[c.Importer.TransferMode]; !ok {
		return fmt.Errorf("importer.transfer_mode must be one of auto, copy, move, hardlink (got %q)", c.Importer.TransferMode)
	}
	return nil
}

func (c *Config) validateClients() error {
	seen := make(map[string]struct{}, len(c.Clients))
	for i, client := range c.Clients {
		if client.ID == "" {
			return fmt.Errorf("clients[%d].id must be set", i)
		}
		if _, dup := seen[client.ID]; dup {
			return fmt.Errorf("clients[%d].id %q duplicates an earlier client", i, client.ID)
		}
		seen[client.ID] = struct{}{}
		switch client.Protocol {
		case "torrent", "usenet":
		default:
			return fmt.Errorf("clients[%d].protocol must be torrent or usenet (got %q)", i, client.Protocol)
		}
		if client.Type == "" {
			return fmt.Errorf("clients[%d].type must be set", i)
		}
		for j, mapping := range client.Mappings {
			if mapping.Remote == "" || mapping.Local == "" {
				return fmt.Errorf("clients[%d].mappings[%d] requires both remote and local", i, j)
			}
			switch mapping.Area {
			case "completed", "incomplete":
			default:
				return fmt.Errorf("clients[%d].mappings[%d].area must be completed or incomplete (got %q)", i, j, mapping.Area)
			}
		}
	}
	return nil
}
