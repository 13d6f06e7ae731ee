// Package manifest writes the table manifests that tell the platform how to
// load each output table into storage.
//
// Manifests are written to <data-dir>/out/tables/<table>.manifest in one of two
// formats. The legacy format lists column names and attaches datatype metadata
// to each column:
//
//	{
//	    "columns": ["id", "name"],
//	    "column_metadata": {
//	        "id": [{"key": "KBC.datatype.type", "value": "INT64"}, ...]
//	    },
//	    "metadata": [{"key": "KBC.name", "value": "customers"}]
//	}
//
// The typed format, used when the output has data type support enabled,
// describes each column with a base type and its native BigQuery type:
//
//	{
//	    "schema": [
//	        {
//	            "name": "id",
//	            "data_type": {"base": {"type": "INTEGER"}, "bigquery": {"type": "INT64"}},
//	            "nullable": false,
//	            "primary_key": true
//	        }
//	    ],
//	    "table_metadata": {"KBC.name": "customers"}
//	}
package manifest
