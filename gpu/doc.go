// Package gpu implements the wgpu-backed rasterizer backends for easel.
//
// Two backend variants register themselves on import:
//
//   - "gpufloat" accumulates stroke coverage in a single RGBA16Float
//     texture with max blending. This is the preferred GPU mode.
//   - "gpufixed" accumulates coverage in a ping-ponged pair of
//     RGBA8Unorm textures for drivers without renderable float
//     textures.
//
// Both variants share the surface, compositing, and readback plumbing
// in this package and must produce output equivalent to the software
// backend within a small per-channel tolerance; the construction-time
// sanity check enforces this against buggy drivers.
//
// The device is either created on a Vulkan adapter during Init or
// received from the host through a [DeviceHandle], in which case the
// backend never destroys it. A process is expected to drive one
// Picture's GPU state at a time; viewport and pipeline state are not
// scoped per caller.
package gpu
