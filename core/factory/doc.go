// Package factory provides a small generic registry used to instantiate
// modules from configuration. A module is named by a type string and carries
// a map of raw settings; its factory decodes the settings into a typed struct
// and returns the concrete implementation. Run-log backends, metrics sinks
// and cache mirrors are all selected this way.
//
// Example usage:
//
//	reg := factory.NewRegistry[io.Reader]()
//	reg.Register("file", func(conf map[string]any) (io.Reader, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return os.Open(c.Path)
//	})
//	r, err := reg.Create(factory.ModuleConfig{Type: "file", Conf: map[string]any{"path": "foo"}})
package factory
