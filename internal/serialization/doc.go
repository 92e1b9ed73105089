// Package serialization stores named float64 tensors in the SafeTensors format.
//
//	Format Structure:
//	  [8 bytes: Header Size (uint64 LE)]
//	  [Header: JSON object name -> {dtype, shape, data_offsets}, plus "__metadata__"]
//	  [Tensor data: raw little-endian bytes, in alphabetical name order]
//
// It is used for training trajectories and network checkpoints. Files written
// here load directly with the Python safetensors package.
//
// Example usage:
//
//	err := serialization.WriteSafeTensors("run.safetensors", map[string]*tensor.RawTensor{
//	    "ys": ys,
//	}, map[string]string{"grad_type": "cv_fwd"})
//
//	tensors, meta, err := serialization.ReadSafeTensors("run.safetensors")
package serialization
