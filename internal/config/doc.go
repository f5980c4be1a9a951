// Package config provides configuration parsing for vprompt projects.
//
// The configuration is stored in vprompt.json at the project root. Every
// field is optional; missing values get defaults.
//
// # Configuration File Structure
//
//	{
//	  "maxTokens": 4096,
//	  "separator": "\n",
//	  "tokenizer": "cl100k_base",
//	  "logLevel": "info",
//	  "inspect": {
//	    "addr": "localhost:7070",
//	    "pipe": "stdin"
//	  },
//	  "archive": {
//	    "bucket": "prompt-snapshots",
//	    "prefix": "snapshots/",
//	    "region": "eu-west-1"
//	  },
//	  "metrics": {
//	    "enabled": true,
//	    "namespace": "vprompt"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.LoadFromWorkingDir()
//	if err != nil {
//	    cfg = config.New()
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config
