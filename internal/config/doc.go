// Package config provides configuration parsing for slicestore.
//
// The configuration is stored in slicestore.json. Every setting can also be
// supplied through a SLICESTORE_* environment variable, which takes
// precedence over the file.
//
// # Configuration File Structure
//
//	{
//	  "inspector": {
//	    "enabled": true,
//	    "host": "localhost",
//	    "port": 7070
//	  },
//	  "metrics": {
//	    "enabled": true,
//	    "namespace": "slicestore"
//	  },
//	  "tracing": {
//	    "endpoint": "http://localhost:4318",
//	    "serviceName": "slicestore"
//	  },
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.Resolve(flagPath, ".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Inspector:", cfg.InspectorAddress())
package config
