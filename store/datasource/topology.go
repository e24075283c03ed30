package datasource

import (
	"fmt"
	"os"
	"strings"

	"github.com/yadunandan004/datacore/config"
	"gopkg.in/ini.v1"
)

// LoadINI reads a topology file:
//
//	[database]
//	driver = postgres
//	statement_timeout = 5s
//
//	[pool]
//	max = 50
//
//	[write]
//	host = primary
//
//	[read1]
//	host = replica-a
//
// Read sections are read1, read2, ... until the first gap. Anything left out
// falls back to env vars and then defaults, as with the yaml config.
func LoadINI(path string) (*config.DataSourceConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("topology file not found at %s", path)
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load topology file: %w", err)
	}

	database := sectionMap(file.Section("database"))
	database["pool"] = sectionMap(file.Section("pool"))

	write, err := file.GetSection("write")
	if err != nil {
		return nil, fmt.Errorf("missing [write] section in %s", path)
	}
	database["write"] = sectionMap(write)

	var reads []interface{}
	for i := 1; ; i++ {
		section, err := file.GetSection(fmt.Sprintf("read%d", i))
		if err != nil {
			break
		}
		reads = append(reads, sectionMap(section))
	}
	if len(reads) > 0 {
		database["read"] = reads
	}

	resolver := config.NewConfigResolverFromMap(map[string]interface{}{"database": database})
	return config.GetDataSourceConfig(resolver), nil
}

func sectionMap(section *ini.Section) map[string]interface{} {
	out := make(map[string]interface{})
	for _, key := range section.Keys() {
		out[strings.ToLower(key.Name())] = key.String()
	}
	return out
}
